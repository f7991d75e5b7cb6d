package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tutorconnect/core/review"
	"github.com/trezcool/tutorconnect/storage/database"
)

type reviewRepository struct{ base }

func NewReviewRepository(db *sqlx.DB, txr *database.Transactor) review.Repository {
	return &reviewRepository{base{db: db, txr: txr}}
}

func (repo *reviewRepository) CreateReview(ctx context.Context, rev review.Review) (review.Review, error) {
	const q = `INSERT INTO reviews (session_id, student_id, tutor_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	err := repo.ext(ctx).QueryRowxContext(ctx, q,
		rev.SessionID, rev.StudentID, rev.TutorID, rev.Rating, rev.Comment, rev.CreatedAt,
	).Scan(&rev.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return review.Review{}, review.ErrAlreadyReviewed
		}
		return review.Review{}, err
	}
	return rev, nil
}

func (repo *reviewRepository) ReviewExists(ctx context.Context, sessionID, studentID int) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.ext(ctx), &exists,
		"SELECT EXISTS (SELECT 1 FROM reviews WHERE session_id = $1 AND student_id = $2)", sessionID, studentID)
	return exists, err
}

func (repo *reviewRepository) QueryReviews(ctx context.Context, tutorID int) ([]review.Detail, error) {
	const q = `SELECT r.id, r.session_id, r.student_id, r.tutor_id, r.rating, r.comment, r.created_at,
		u.full_name AS student_name
		FROM reviews r JOIN users u ON u.id = r.student_id
		WHERE r.tutor_id = $1
		ORDER BY r.created_at DESC, r.id DESC`
	revs := make([]review.Detail, 0)
	err := sqlx.SelectContext(ctx, repo.ext(ctx), &revs, q, tutorID)
	return revs, err
}
