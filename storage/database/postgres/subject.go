package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tutorconnect/core/subject"
	"github.com/trezcool/tutorconnect/storage/database"
)

type subjectRepository struct{ base }

func NewSubjectRepository(db *sqlx.DB, txr *database.Transactor) subject.Repository {
	return &subjectRepository{base{db: db, txr: txr}}
}

func (repo *subjectRepository) QuerySubjects(ctx context.Context) ([]subject.Subject, error) {
	subjects := make([]subject.Subject, 0)
	err := sqlx.SelectContext(ctx, repo.ext(ctx), &subjects, "SELECT id, name FROM subjects ORDER BY name")
	return subjects, err
}

func (repo *subjectRepository) GetSubject(ctx context.Context, id int) (subject.Subject, error) {
	var sub subject.Subject
	err := sqlx.GetContext(ctx, repo.ext(ctx), &sub, "SELECT id, name FROM subjects WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return subject.Subject{}, subject.ErrNotFound
	}
	return sub, err
}
