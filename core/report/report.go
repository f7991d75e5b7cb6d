// Package report builds the admin dashboard and the CSV exports.
package report

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
)

// Exports
const (
	ExportStudents = "students"
	ExportTutors   = "tutors"
	ExportSessions = "sessions"
)

var ErrUnknownExport = errors.New("Unknown export.")

type (
	Dashboard struct {
		Students            int            `json:"students" db:"students"`
		Tutors              int            `json:"tutors" db:"tutors"`
		PendingApplications int            `json:"pending_applications" db:"pending_applications"`
		Reviews             int            `json:"reviews" db:"reviews"`
		Sessions            map[string]int `json:"sessions" db:"-"` // by status
	}

	Repository interface {
		Counts(ctx context.Context) (Dashboard, error)
	}

	UserLister interface {
		Query(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	SessionLister interface {
		ListAll(ctx context.Context) ([]session.Detail, error)
	}

	Service struct {
		repo     Repository
		users    UserLister
		sessions SessionLister
	}
)

func NewService(repo Repository, users UserLister, sessions SessionLister) *Service {
	return &Service{repo: repo, users: users, sessions: sessions}
}

func (svc *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	dash, err := svc.repo.Counts(ctx)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "counting")
	}
	if dash.Sessions == nil {
		dash.Sessions = make(map[string]int)
	}
	for _, st := range []string{session.StatusScheduled, session.StatusCompleted, session.StatusCancelled} {
		if _, ok := dash.Sessions[st]; !ok {
			dash.Sessions[st] = 0
		}
	}
	return dash, nil
}

func (svc *Service) Students(ctx context.Context) ([]user.User, error) {
	return svc.users.Query(ctx, user.QueryFilter{Role: user.RoleStudent}, byName)
}

// Tutors lists every tutor, approved or not.
func (svc *Service) Tutors(ctx context.Context) ([]user.User, error) {
	return svc.users.Query(ctx, user.QueryFilter{Role: user.RoleTutor}, byName)
}

var byName = []core.DBOrdering{{Field: "full_name", Ascending: true}}

// Export writes the named export as CSV: a header row then one row per record.
func (svc *Service) Export(ctx context.Context, name string, w io.Writer) error {
	var (
		header []string
		rows   [][]string
	)
	switch name {
	case ExportStudents, ExportTutors:
		list := svc.Students
		header = []string{"id", "full_name", "email", "learning_style", "location", "created_at"}
		if name == ExportTutors {
			list = svc.Tutors
			header = []string{"id", "full_name", "email", "subject", "location", "price", "experience_years", "is_approved", "created_at"}
		}
		users, err := list(ctx)
		if err != nil {
			return errors.Wrapf(err, "listing %s", name)
		}
		for _, u := range users {
			if name == ExportTutors {
				rows = append(rows, []string{
					strconv.Itoa(u.ID), u.FullName, u.Email, u.Subject, u.Location,
					strconv.FormatFloat(u.Price, 'f', 2, 64), strconv.Itoa(u.ExperienceYears),
					strconv.FormatBool(u.IsApproved), u.CreatedAt.Format(time.RFC3339),
				})
				continue
			}
			rows = append(rows, []string{
				strconv.Itoa(u.ID), u.FullName, u.Email, u.LearningStyle, u.Location, u.CreatedAt.Format(time.RFC3339),
			})
		}
	case ExportSessions:
		header = []string{"id", "student", "tutor", "subject", "scheduled_time", "status", "performance_score", "feedback"}
		sessions, err := svc.sessions.ListAll(ctx)
		if err != nil {
			return errors.Wrap(err, "listing sessions")
		}
		for _, s := range sessions {
			score := ""
			if s.PerformanceScore != nil {
				score = strconv.Itoa(*s.PerformanceScore)
			}
			rows = append(rows, []string{
				strconv.Itoa(s.ID), s.StudentName, s.TutorName, s.Subject,
				s.ScheduledTime.Format(time.RFC3339), s.Status, score, s.Feedback,
			})
		}
	default:
		return ErrUnknownExport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return errors.Wrap(err, "writing csv")
	}
	return nil
}
