package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tutorconnect/core/report"
	"github.com/trezcool/tutorconnect/storage/database"
)

type reportRepository struct{ base }

func NewReportRepository(db *sqlx.DB, txr *database.Transactor) report.Repository {
	return &reportRepository{base{db: db, txr: txr}}
}

func (repo *reportRepository) Counts(ctx context.Context) (report.Dashboard, error) {
	const q = `SELECT
		(SELECT COUNT(*) FROM users WHERE role = 'student') AS students,
		(SELECT COUNT(*) FROM users WHERE role = 'tutor') AS tutors,
		(SELECT COUNT(*) FROM tutor_applications WHERE status = 'pending') AS pending_applications,
		(SELECT COUNT(*) FROM reviews) AS reviews`

	var dash report.Dashboard
	ext := repo.ext(ctx)
	if err := sqlx.GetContext(ctx, ext, &dash, q); err != nil {
		return report.Dashboard{}, err
	}

	var byStatus []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := sqlx.SelectContext(ctx, ext, &byStatus, "SELECT status, COUNT(*) AS count FROM sessions GROUP BY status"); err != nil {
		return report.Dashboard{}, err
	}
	dash.Sessions = make(map[string]int, len(byStatus))
	for _, row := range byStatus {
		dash.Sessions[row.Status] = row.Count
	}
	return dash, nil
}
