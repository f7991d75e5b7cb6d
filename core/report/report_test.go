package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorconnect/core/report"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
	inmemdb "github.com/trezcool/tutorconnect/storage/database/inmem"
	"github.com/trezcool/tutorconnect/testutil"
)

type sessionLister struct {
	repo session.Repository
}

func (l sessionLister) ListAll(ctx context.Context) ([]session.Detail, error) {
	return l.repo.QuerySessions(ctx, session.QueryFilter{})
}

func TestService_Export(t *testing.T) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	sessRepo := inmemdb.NewSessionRepository(db)
	svc := report.NewService(inmemdb.NewReportRepository(db), user.NewService(usrRepo), sessionLister{sessRepo})
	ctx := context.Background()

	created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	testutil.CreateUser(t, usrRepo, "Zawadi, Jr", "zawadi@test.cd", user.RoleStudent, created)
	amani := testutil.CreateUser(t, usrRepo, "Amani", "amani@test.cd", user.RoleStudent, created)
	tutor := testutil.CreateTutor(t, usrRepo, "Baraka", "baraka@test.cd", "Mathematics", "Bukavu", 20, 2)

	sess := testutil.CreateSession(t, sessRepo, amani.ID, tutor.ID, 8, created.AddDate(0, 0, 1), session.StatusScheduled)
	score := 4
	sess.Status = session.StatusCompleted
	sess.Feedback = `Solved "hard" equations`
	sess.PerformanceScore = &score
	_, err := sessRepo.UpdateSession(ctx, sess, session.StatusScheduled)
	require.NoError(t, err)

	read := func(t *testing.T, name string) [][]string {
		var buf bytes.Buffer
		require.NoError(t, svc.Export(ctx, name, &buf))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		return records
	}

	t.Run("students, by name", func(t *testing.T) {
		records := read(t, report.ExportStudents)
		require.Len(t, records, 3)
		assert.Equal(t, []string{"id", "full_name", "email", "learning_style", "location", "created_at"}, records[0])
		assert.Equal(t, "amani@test.cd", records[1][2])
		assert.Equal(t, "Zawadi, Jr", records[2][1]) // quoted
		assert.Equal(t, "2026-01-05T09:00:00Z", records[2][5])
	})

	t.Run("sessions", func(t *testing.T) {
		records := read(t, report.ExportSessions)
		require.Len(t, records, 2)
		assert.Equal(t, []string{"1", "Amani", "Baraka", "Mathematics", "2026-01-06T09:00:00Z", "completed", "4", `Solved "hard" equations`}, records[1])
	})

	t.Run("unknown", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Equal(t, report.ErrUnknownExport, svc.Export(ctx, "reviews", &buf))
		assert.Zero(t, buf.Len())
	})
}

func TestService_Dashboard(t *testing.T) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	svc := report.NewService(inmemdb.NewReportRepository(db), user.NewService(usrRepo), sessionLister{inmemdb.NewSessionRepository(db)})

	testutil.CreateUser(t, usrRepo, "Amani", "amani@test.cd", user.RoleStudent)

	dash, err := svc.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Students)
	assert.Zero(t, dash.Tutors)
	assert.Equal(t, map[string]int{"scheduled": 0, "completed": 0, "cancelled": 0}, dash.Sessions)
}
