package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/tutorconnect/core/availability"
	"github.com/trezcool/tutorconnect/storage/database"
)

type availabilityRepository struct{ base }

func NewAvailabilityRepository(db *sqlx.DB, txr *database.Transactor) availability.Repository {
	return &availabilityRepository{base{db: db, txr: txr}}
}

func (repo *availabilityRepository) QuerySlots(ctx context.Context, tutorID int) ([]availability.Slot, error) {
	slots := make([]availability.Slot, 0)
	err := sqlx.SelectContext(ctx, repo.ext(ctx), &slots,
		"SELECT id, tutor_id, day_of_week, start_time, end_time FROM availability WHERE tutor_id = $1 ORDER BY id",
		tutorID,
	)
	return slots, err
}

func (repo *availabilityRepository) DeleteSlots(ctx context.Context, tutorID int) error {
	_, err := repo.ext(ctx).ExecContext(ctx, "DELETE FROM availability WHERE tutor_id = $1", tutorID)
	return err
}

func (repo *availabilityRepository) CreateSlots(ctx context.Context, slots []availability.Slot) error {
	const q = "INSERT INTO availability (tutor_id, day_of_week, start_time, end_time) VALUES ($1, $2, $3, $4)"
	ext := repo.ext(ctx)
	for _, s := range slots {
		if _, err := ext.ExecContext(ctx, q, s.TutorID, s.DayOfWeek, s.StartTime, s.EndTime); err != nil {
			return err
		}
	}
	return nil
}
