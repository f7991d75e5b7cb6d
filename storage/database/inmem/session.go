package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/tutorconnect/core/session"
)

type sessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) hasConflict(tutorID int, t time.Time, excludeID int) bool {
	for _, s := range repo.db.t.sessions {
		if s.TutorID == tutorID && s.ID != excludeID && s.ConflictsWith(t) {
			return true
		}
	}
	return false
}

func (repo *sessionRepository) detail(s session.Session) session.Detail {
	student := repo.db.t.users[s.StudentID]
	tutor := repo.db.t.users[s.TutorID]
	return session.Detail{
		Session:      s,
		StudentName:  student.FullName,
		StudentEmail: student.Email,
		TutorName:    tutor.FullName,
		TutorEmail:   tutor.Email,
		Subject:      repo.db.t.subjects[s.SubjectID].Name,
	}
}

func (repo *sessionRepository) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.hasConflict(sess.TutorID, sess.ScheduledTime, 0) {
		return session.Session{}, session.ErrConflict
	}
	sess.ID = repo.db.nextID("sessions")
	repo.db.t.sessions[sess.ID] = sess
	return sess, nil
}

func (repo *sessionRepository) RescheduleSession(_ context.Context, id int, t time.Time) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.t.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	if sess.Status != session.StatusScheduled {
		return session.Session{}, session.ErrStatusChanged
	}
	if repo.hasConflict(sess.TutorID, t, id) {
		return session.Session{}, session.ErrConflict
	}
	sess.ScheduledTime = t
	sess.ReminderSent = false
	sess.UpdatedAt = time.Now().UTC()
	repo.db.t.sessions[id] = sess
	return sess, nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id int) (session.Detail, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sess, ok := repo.db.t.sessions[id]
	if !ok {
		return session.Detail{}, session.ErrNotFound
	}
	return repo.detail(sess), nil
}

func (repo *sessionRepository) UpdateSession(_ context.Context, sess session.Session, from string) (session.Session, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cur, ok := repo.db.t.sessions[sess.ID]
	if !ok || cur.Status != from {
		return session.Session{}, session.ErrStatusChanged
	}
	cur.Status = sess.Status
	cur.Feedback = sess.Feedback
	cur.PerformanceScore = sess.PerformanceScore
	cur.UpdatedAt = sess.UpdatedAt
	repo.db.t.sessions[sess.ID] = cur
	return cur, nil
}

func matchSession(s session.Session, filter session.QueryFilter) bool {
	switch {
	case filter.StudentID != 0 && s.StudentID != filter.StudentID:
		return false
	case filter.TutorID != 0 && s.TutorID != filter.TutorID:
		return false
	case !filter.From.IsZero() && s.ScheduledTime.Before(filter.From):
		return false
	case !filter.To.IsZero() && s.ScheduledTime.After(filter.To):
		return false
	case filter.ReminderSent != nil && s.ReminderSent != *filter.ReminderSent:
		return false
	}
	if len(filter.Statuses) == 0 {
		return true
	}
	for _, st := range filter.Statuses {
		if s.Status == st {
			return true
		}
	}
	return false
}

func (repo *sessionRepository) QuerySessions(_ context.Context, filter session.QueryFilter) ([]session.Detail, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sessions := make([]session.Detail, 0)
	for _, s := range repo.db.t.sessions {
		if matchSession(s, filter) {
			sessions = append(sessions, repo.detail(s))
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		a, b := sessions[i], sessions[j]
		if !a.ScheduledTime.Equal(b.ScheduledTime) {
			return a.ScheduledTime.Before(b.ScheduledTime) == filter.Ascending
		}
		return (a.ID < b.ID) == filter.Ascending
	})
	return sessions, nil
}

func (repo *sessionRepository) MarkReminderSent(_ context.Context, id int) (bool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sess, ok := repo.db.t.sessions[id]
	if !ok || sess.ReminderSent {
		return false, nil
	}
	sess.ReminderSent = true
	repo.db.t.sessions[id] = sess
	return true, nil
}
