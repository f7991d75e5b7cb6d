package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/availability"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
	emailsvc "github.com/trezcool/tutorconnect/services/email"
	logsvc "github.com/trezcool/tutorconnect/services/logger"
	inmemdb "github.com/trezcool/tutorconnect/storage/database/inmem"
	"github.com/trezcool/tutorconnect/testutil"
)

const mathematics = 8

type metricsSpy struct {
	booked    int
	rejected  []string
	cancelled []string
	reminded  int
}

func (m *metricsSpy) SessionBooked()                { m.booked++ }
func (m *metricsSpy) BookingRejected(reason string) { m.rejected = append(m.rejected, reason) }
func (m *metricsSpy) SessionCancelled(by string)    { m.cancelled = append(m.cancelled, by) }
func (m *metricsSpy) RemindersSent(n int)           { m.reminded += n }

type fixture struct {
	svc       *session.Service
	metrics   *metricsSpy
	repo      session.Repository
	availRepo availability.Repository
	student   user.User
	tutor     user.User
}

func setup(t *testing.T) fixture {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	f := fixture{
		metrics:   new(metricsSpy),
		repo:      inmemdb.NewSessionRepository(db),
		availRepo: inmemdb.NewAvailabilityRepository(db),
		student:   testutil.CreateUser(t, usrRepo, "Amani", "amani@test.cd", user.RoleStudent),
		tutor:     testutil.CreateTutor(t, usrRepo, "Baraka", "baraka@test.cd", "Mathematics", "Bukavu", 20, 2),
	}

	emailsvc.ClearSentMessages()
	f.svc = session.NewService(session.Deps{
		Repo:         f.repo,
		Availability: availability.NewService(f.availRepo, db, conf.Location()),
		Subjects:     inmemdb.NewSubjectRepository(db),
		MailSvc:      emailsvc.NewConsoleServiceMock(conf, logger),
		Logger:       logger,
		Metrics:      f.metrics,
		Conf:         conf,
	})
	return f
}

func TestService_SendReminders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	due := testutil.CreateSession(t, f.repo, f.student.ID, f.tutor.ID, mathematics, now.Add(30*time.Minute), "")
	edge := testutil.CreateSession(t, f.repo, f.student.ID, f.tutor.ID, mathematics, now.Add(-90*time.Minute), "") // started
	testutil.CreateSession(t, f.repo, f.student.ID, f.tutor.ID, mathematics, now.Add(3*time.Hour), "")             // too far
	testutil.CreateSession(t, f.repo, f.student.ID, f.tutor.ID, mathematics, now.Add(-3*time.Hour), session.StatusCancelled)

	n, err := f.svc.SendReminders(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.metrics.reminded)

	msgs := emailsvc.LastSentMessages(10)
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.Equal(t, "session_reminder", msg.TemplateName)
		assert.Contains(t, msg.TextContent, "Reminder: your Mathematics session with")
		assert.Contains(t, msg.TextContent, "The TutorConnect team")
	}

	det, err := f.repo.GetSession(ctx, due.ID)
	require.NoError(t, err)
	assert.True(t, det.ReminderSent)
	det, err = f.repo.GetSession(ctx, edge.ID)
	require.NoError(t, err)
	assert.False(t, det.ReminderSent)

	t.Run("once per session", func(t *testing.T) {
		n, err := f.svc.SendReminders(ctx, now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Len(t, emailsvc.LastSentMessages(10), 2)
	})
}

func TestService_Book(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	when := time.Now().UTC().AddDate(0, 0, 2).Truncate(time.Hour)
	testutil.AddSlot(t, f.availRepo, f.tutor.ID, when.Weekday().String(), "00:00", "23:59")

	book := func(t time.Time) error {
		_, err := f.svc.Book(ctx, f.student.ID, session.NewBooking{TutorID: f.tutor.ID, SubjectID: mathematics, ScheduledTime: t.Format(time.RFC3339)})
		return err
	}

	require.NoError(t, book(when))
	assert.True(t, core.IsValidationError(book(when.Add(45*time.Minute)), session.ErrTutorBusy))
	assert.True(t, core.IsValidationError(book(when.AddDate(0, 0, 1)), session.ErrTutorUnavailable))
	assert.Equal(t, 1, f.metrics.booked)
	assert.Equal(t, []string{"conflict", "unavailable"}, f.metrics.rejected)

	t.Run("unknown subject", func(t *testing.T) {
		_, err := f.svc.Book(ctx, f.student.ID, session.NewBooking{TutorID: f.tutor.ID, SubjectID: 99, ScheduledTime: when.Format(time.RFC3339)})
		assert.True(t, core.IsValidationError(err, session.ErrSubjectNotFound))
	})
}

func TestService_Cancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sess := testutil.CreateSession(t, f.repo, f.student.ID, f.tutor.ID, mathematics, time.Now().UTC().Add(48*time.Hour), "")

	det, err := f.svc.Cancel(ctx, session.Actor{ID: f.student.ID, Name: "Amani", Role: user.RoleStudent}, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCancelled, det.Status)
	assert.Equal(t, []string{user.RoleStudent}, f.metrics.cancelled)

	msgs := emailsvc.LastSentMessages(2)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].TextContent, "Amani")
}
