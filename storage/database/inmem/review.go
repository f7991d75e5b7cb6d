package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/tutorconnect/core/review"
)

type reviewRepository struct {
	db *DB
}

func NewReviewRepository(db *DB) review.Repository {
	return &reviewRepository{db: db}
}

func (repo *reviewRepository) exists(sessionID, studentID int) bool {
	for _, r := range repo.db.t.reviews {
		if r.SessionID == sessionID && r.StudentID == studentID {
			return true
		}
	}
	return false
}

func (repo *reviewRepository) CreateReview(_ context.Context, rev review.Review) (review.Review, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.exists(rev.SessionID, rev.StudentID) {
		return review.Review{}, review.ErrAlreadyReviewed
	}
	rev.ID = repo.db.nextID("reviews")
	repo.db.t.reviews[rev.ID] = rev
	return rev, nil
}

func (repo *reviewRepository) ReviewExists(_ context.Context, sessionID, studentID int) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.exists(sessionID, studentID), nil
}

func (repo *reviewRepository) QueryReviews(_ context.Context, tutorID int) ([]review.Detail, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	revs := make([]review.Detail, 0)
	for _, r := range repo.db.t.reviews {
		if r.TutorID == tutorID {
			revs = append(revs, review.Detail{Review: r, StudentName: repo.db.t.users[r.StudentID].FullName})
		}
	}
	sort.Slice(revs, func(i, j int) bool {
		if !revs[i].CreatedAt.Equal(revs[j].CreatedAt) {
			return revs[i].CreatedAt.After(revs[j].CreatedAt)
		}
		return revs[i].ID > revs[j].ID
	})
	return revs, nil
}
