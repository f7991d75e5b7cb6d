package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tutorconnect/core/application"
	"github.com/trezcool/tutorconnect/storage/database"
)

const applicationColumns = `id, full_name, email, password_hash, bio, location, subject, price, experience_years,
	profile_picture, status, created_at, updated_at`

type applicationRepository struct{ base }

func NewApplicationRepository(db *sqlx.DB, txr *database.Transactor) application.Repository {
	return &applicationRepository{base{db: db, txr: txr}}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	const q = `INSERT INTO tutor_applications (full_name, email, password_hash, bio, location, subject, price,
		experience_years, profile_picture, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`
	err := repo.ext(ctx).QueryRowxContext(ctx, q,
		app.FullName, app.Email, app.PasswordHash, app.Bio, app.Location, app.Subject, app.Price,
		app.ExperienceYears, app.ProfilePicture, app.Status, app.CreatedAt, app.UpdatedAt,
	).Scan(&app.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return application.Application{}, application.ErrEmailExists
		}
		return application.Application{}, err
	}
	return app, nil
}

func (repo *applicationRepository) GetApplication(ctx context.Context, id int) (application.Application, error) {
	var app application.Application
	err := sqlx.GetContext(ctx, repo.ext(ctx), &app,
		"SELECT "+applicationColumns+" FROM tutor_applications WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return application.Application{}, application.ErrNotFound
	}
	return app, err
}

func (repo *applicationRepository) PendingExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, repo.ext(ctx), &exists,
		"SELECT EXISTS (SELECT 1 FROM tutor_applications WHERE email = $1 AND status = 'pending')", email)
	return exists, err
}

func (repo *applicationRepository) QueryApplications(ctx context.Context, status string) ([]application.Application, error) {
	var w where
	if status != "" {
		w.add("status = ?", status)
	}
	q, args, err := w.build("SELECT "+applicationColumns+" FROM tutor_applications", "ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, err
	}
	apps := make([]application.Application, 0)
	err = sqlx.SelectContext(ctx, repo.ext(ctx), &apps, q, args...)
	return apps, err
}

func (repo *applicationRepository) UpdateStatus(ctx context.Context, id int, from, to string) (application.Application, error) {
	var app application.Application
	err := sqlx.GetContext(ctx, repo.ext(ctx), &app,
		`UPDATE tutor_applications SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2 RETURNING `+applicationColumns,
		id, from, to)
	if err == sql.ErrNoRows {
		return application.Application{}, application.ErrStatusChanged
	}
	return app, err
}
