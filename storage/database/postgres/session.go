package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/storage/database"
)

const (
	sessionColumns = `s.id, s.student_id, s.tutor_id, s.subject_id, s.scheduled_time, s.status, s.feedback,
	s.performance_score, s.reminder_sent, s.created_at, s.updated_at`

	sessionDetailQuery = `SELECT ` + sessionColumns + `,
	st.full_name AS student_name, st.email AS student_email,
	tu.full_name AS tutor_name, tu.email AS tutor_email,
	sub.name AS subject
	FROM sessions s
	JOIN users st ON st.id = s.student_id
	JOIN users tu ON tu.id = s.tutor_id
	JOIN subjects sub ON sub.id = s.subject_id`

	// the window bounds are inclusive: sessions exactly 59 minutes apart conflict
	conflictQuery = `SELECT EXISTS (
	SELECT 1 FROM sessions
	WHERE tutor_id = $1 AND status IN ('scheduled', 'completed') AND id <> $3
	AND scheduled_time BETWEEN $2::timestamptz - $4::interval AND $2::timestamptz + $4::interval)`
)

var conflictInterval = "59 minutes"

type sessionRepository struct{ base }

func NewSessionRepository(db *sqlx.DB, txr *database.Transactor) session.Repository {
	return &sessionRepository{base{db: db, txr: txr}}
}

// lockTutor serialises the bookings of a tutor until the end of the current transaction.
func (repo *sessionRepository) lockTutor(ctx context.Context, tutorID int) error {
	_, err := repo.ext(ctx).ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", int64(tutorID))
	return errors.Wrap(err, "locking tutor")
}

func (repo *sessionRepository) hasConflict(ctx context.Context, tutorID int, t time.Time, excludeID int) (bool, error) {
	var conflict bool
	err := sqlx.GetContext(ctx, repo.ext(ctx), &conflict, conflictQuery, tutorID, t, excludeID, conflictInterval)
	return conflict, errors.Wrap(err, "checking conflicts")
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	err := repo.txr.WithinTx(ctx, func(ctx context.Context) error {
		if err := repo.lockTutor(ctx, sess.TutorID); err != nil {
			return err
		}
		conflict, err := repo.hasConflict(ctx, sess.TutorID, sess.ScheduledTime, 0)
		if err != nil {
			return err
		}
		if conflict {
			return session.ErrConflict
		}

		const q = `INSERT INTO sessions (student_id, tutor_id, subject_id, scheduled_time, status, feedback,
			performance_score, reminder_sent, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
		return repo.ext(ctx).QueryRowxContext(ctx, q,
			sess.StudentID, sess.TutorID, sess.SubjectID, sess.ScheduledTime, sess.Status, sess.Feedback,
			sess.PerformanceScore, sess.ReminderSent, sess.CreatedAt, sess.UpdatedAt,
		).Scan(&sess.ID)
	})
	if err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (repo *sessionRepository) RescheduleSession(ctx context.Context, id int, t time.Time) (session.Session, error) {
	var sess session.Session
	err := repo.txr.WithinTx(ctx, func(ctx context.Context) error {
		var cur session.Session
		err := sqlx.GetContext(ctx, repo.ext(ctx), &cur,
			"SELECT "+sessionColumns+" FROM sessions s WHERE s.id = $1 FOR UPDATE", id)
		if err != nil {
			if err == sql.ErrNoRows {
				return session.ErrNotFound
			}
			return err
		}
		if cur.Status != session.StatusScheduled {
			return session.ErrStatusChanged
		}

		if err = repo.lockTutor(ctx, cur.TutorID); err != nil {
			return err
		}
		conflict, err := repo.hasConflict(ctx, cur.TutorID, t, id)
		if err != nil {
			return err
		}
		if conflict {
			return session.ErrConflict
		}

		const q = `UPDATE sessions s SET scheduled_time = $2, reminder_sent = FALSE, updated_at = NOW()
			WHERE s.id = $1 RETURNING ` + sessionColumns
		return sqlx.GetContext(ctx, repo.ext(ctx), &sess, q, id, t)
	})
	if err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (repo *sessionRepository) GetSession(ctx context.Context, id int) (session.Detail, error) {
	var det session.Detail
	err := sqlx.GetContext(ctx, repo.ext(ctx), &det, sessionDetailQuery+" WHERE s.id = $1", id)
	if err == sql.ErrNoRows {
		return session.Detail{}, session.ErrNotFound
	}
	return det, err
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, sess session.Session, from string) (session.Session, error) {
	const q = `UPDATE sessions s SET status = $3, feedback = $4, performance_score = $5, updated_at = $6
		WHERE s.id = $1 AND s.status = $2 RETURNING ` + sessionColumns
	var updated session.Session
	err := sqlx.GetContext(ctx, repo.ext(ctx), &updated, q,
		sess.ID, from, sess.Status, sess.Feedback, sess.PerformanceScore, sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return session.Session{}, session.ErrStatusChanged
	}
	return updated, err
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, filter session.QueryFilter) ([]session.Detail, error) {
	var w where
	if filter.StudentID != 0 {
		w.add("s.student_id = ?", filter.StudentID)
	}
	if filter.TutorID != 0 {
		w.add("s.tutor_id = ?", filter.TutorID)
	}
	if len(filter.Statuses) > 0 {
		w.add("s.status IN (?)", filter.Statuses)
	}
	if !filter.From.IsZero() {
		w.add("s.scheduled_time >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("s.scheduled_time <= ?", filter.To)
	}
	if filter.ReminderSent != nil {
		w.add("s.reminder_sent = ?", *filter.ReminderSent)
	}

	orderBy := "ORDER BY s.scheduled_time DESC, s.id DESC"
	if filter.Ascending {
		orderBy = "ORDER BY s.scheduled_time ASC, s.id ASC"
	}
	q, args, err := w.build(sessionDetailQuery, orderBy)
	if err != nil {
		return nil, err
	}

	sessions := make([]session.Detail, 0)
	err = sqlx.SelectContext(ctx, repo.ext(ctx), &sessions, q, args...)
	return sessions, err
}

func (repo *sessionRepository) MarkReminderSent(ctx context.Context, id int) (bool, error) {
	res, err := repo.ext(ctx).ExecContext(ctx,
		"UPDATE sessions SET reminder_sent = TRUE WHERE id = $1 AND NOT reminder_sent", id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
