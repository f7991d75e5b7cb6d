// Package subject holds the static list of subjects sessions are booked for.
package subject

import (
	"context"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("Subject not found.")

type Subject struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Repository interface {
	QuerySubjects(ctx context.Context) ([]Subject, error)
	GetSubject(ctx context.Context, id int) (Subject, error)
}
