// Package review lets students rate the sessions they took.
package review

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/session"
)

var (
	// errors
	ErrAlreadyReviewed = errors.New("You already reviewed this session.")
	ErrSessionNotFound = session.ErrNotFound
)

type (
	Review struct {
		ID        int       `json:"id" db:"id"`
		SessionID int       `json:"session_id" db:"session_id"`
		StudentID int       `json:"student_id" db:"student_id"`
		TutorID   int       `json:"tutor_id" db:"tutor_id"`
		Rating    int       `json:"rating" db:"rating"`
		Comment   string    `json:"comment" db:"comment"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	Detail struct {
		Review
		StudentName string `json:"student_name" db:"student_name"`
	}

	NewReview struct {
		SessionID int    `json:"session_id" validate:"required"`
		TutorID   int    `json:"tutor_id"`
		Rating    int    `json:"rating" validate:"required,min=1,max=5"`
		Comment   string `json:"comment"`
	}

	Repository interface {
		// CreateReview returns ErrAlreadyReviewed when the student already reviewed the session.
		CreateReview(ctx context.Context, rev Review) (Review, error)
		ReviewExists(ctx context.Context, sessionID, studentID int) (bool, error)
		// QueryReviews lists the reviews of a tutor, newest first.
		QueryReviews(ctx context.Context, tutorID int) ([]Detail, error)
	}

	SessionGetter interface {
		GetSession(ctx context.Context, id int) (session.Detail, error)
	}

	Service struct {
		repo     Repository
		sessions SessionGetter
	}
)

func (nr *NewReview) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

func NewService(repo Repository, sessions SessionGetter) *Service {
	return &Service{repo: repo, sessions: sessions}
}

// Submit records the review of studentID for a session; the tutor is the session's.
func (svc *Service) Submit(ctx context.Context, studentID int, nr NewReview) (Review, error) {
	sess, err := svc.sessions.GetSession(ctx, nr.SessionID)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return Review{}, ErrSessionNotFound
		}
		return Review{}, errors.Wrap(err, "finding session")
	}

	exists, err := svc.repo.ReviewExists(ctx, sess.ID, studentID)
	if err != nil {
		return Review{}, errors.Wrap(err, "checking review")
	}
	if exists {
		return Review{}, core.NewValidationError(ErrAlreadyReviewed)
	}

	rev, err := svc.repo.CreateReview(ctx, Review{
		SessionID: sess.ID,
		StudentID: studentID,
		TutorID:   sess.TutorID,
		Rating:    nr.Rating,
		Comment:   nr.Comment,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyReviewed {
			return Review{}, core.NewValidationError(ErrAlreadyReviewed)
		}
		return Review{}, errors.Wrap(err, "creating review")
	}
	return rev, nil
}

func (svc *Service) ListForTutor(ctx context.Context, tutorID int) ([]Detail, error) {
	revs, err := svc.repo.QueryReviews(ctx, tutorID)
	if err != nil {
		return nil, errors.Wrap(err, "querying reviews")
	}
	if revs == nil {
		revs = []Detail{}
	}
	return revs, nil
}
