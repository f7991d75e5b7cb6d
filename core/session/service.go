package session

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/availability"
	"github.com/trezcool/tutorconnect/core/subject"
	"github.com/trezcool/tutorconnect/core/user"
)

const whenLayout = "Monday, Jan 2 2006 at 15:04 MST"

var (
	// errors
	ErrNotFound             = errors.New("Session not found.")
	ErrNotFoundOrNotYours   = errors.New("Session not found or not yours.")
	ErrNotOwnerCancel       = errors.New("You can only cancel your own session.")
	ErrNotOwnerReschedule   = errors.New("You can only reschedule your own session.")
	ErrTutorUnavailable     = errors.New("Tutor is not available at this time.")
	ErrTutorBusy            = errors.New("Tutor already has a session at this time.")
	ErrAlreadyCancelled     = errors.New("Session is already cancelled.")
	ErrCompletedNoCancel    = errors.New("Completed sessions cannot be cancelled.")
	ErrCancelledNoComplete  = errors.New("Cancelled sessions cannot be completed.")
	ErrAlreadyCompleted     = errors.New("Session is already completed.")
	ErrNotReschedulable     = errors.New("Only scheduled sessions can be rescheduled.")
	ErrTooLateToCancel      = errors.New("Cannot cancel less than 2 hours before.")
	ErrSubjectNotFound      = subject.ErrNotFound
	ErrInvalidScheduledTime = errors.New("scheduled_time is not a valid date and time")

	// repository errors
	ErrConflict      = errors.New("conflicting session")
	ErrStatusChanged = errors.New("session status changed")
)

type (
	Repository interface {
		// CreateSession inserts sess unless an active session of the same tutor lies within
		// ConflictWindow of it, in which case ErrConflict is returned.
		CreateSession(ctx context.Context, sess Session) (Session, error)
		// RescheduleSession moves a scheduled session to t and clears its reminder flag.
		// Returns ErrConflict like CreateSession (ignoring the session itself),
		// ErrStatusChanged if the session is no longer scheduled.
		RescheduleSession(ctx context.Context, id int, t time.Time) (Session, error)
		GetSession(ctx context.Context, id int) (Detail, error)
		// UpdateSession saves status, feedback and performance score if the stored status is still from.
		// Returns ErrStatusChanged otherwise.
		UpdateSession(ctx context.Context, sess Session, from string) (Session, error)
		QuerySessions(ctx context.Context, filter QueryFilter) ([]Detail, error)
		// MarkReminderSent flags the session and reports whether this call did it.
		MarkReminderSent(ctx context.Context, id int) (bool, error)
	}

	// Metrics observes the booking flow.
	Metrics interface {
		SessionBooked()
		BookingRejected(reason string)
		SessionCancelled(by string)
		RemindersSent(n int)
	}

	Deps struct {
		Repo         Repository
		Availability *availability.Service
		Subjects     subject.Repository
		MailSvc      core.EmailService
		Logger       core.Logger
		Metrics      Metrics // optional
		Conf         *core.Config
	}

	Service struct {
		repo     Repository
		avail    *availability.Service
		subjects subject.Repository
		mailSvc  core.EmailService
		logger   core.Logger
		metrics  Metrics
		conf     *core.Config
		nowFunc  func() time.Time
	}

	// Actor is the authenticated user acting on a session.
	Actor struct {
		ID   int
		Name string
		Role string
	}
)

func NewService(deps Deps) *Service {
	svc := &Service{
		repo:     deps.Repo,
		avail:    deps.Availability,
		subjects: deps.Subjects,
		mailSvc:  deps.MailSvc,
		logger:   deps.Logger,
		metrics:  deps.Metrics,
		conf:     deps.Conf,
		nowFunc:  func() time.Time { return time.Now().UTC() },
	}
	if svc.metrics == nil {
		svc.metrics = nopMetrics{}
	}
	return svc
}

// Book schedules a session for studentID once the tutor's availability and calendar allow it.
func (svc *Service) Book(ctx context.Context, studentID int, nb NewBooking) (Detail, error) {
	when, err := core.ParseTimestamp(nb.ScheduledTime, svc.conf.Location())
	if err != nil {
		return Detail{}, core.NewValidationError(ErrInvalidScheduledTime, core.FieldError{Field: "scheduled_time", Error: ErrInvalidScheduledTime.Error()})
	}

	if _, err = svc.subjects.GetSubject(ctx, nb.SubjectID); err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return Detail{}, core.NewValidationError(ErrSubjectNotFound)
		}
		return Detail{}, errors.Wrap(err, "finding subject")
	}

	if err = svc.checkAvailability(ctx, nb.TutorID, when); err != nil {
		return Detail{}, err
	}

	now := svc.nowFunc()
	sess, err := svc.repo.CreateSession(ctx, Session{
		StudentID:     studentID,
		TutorID:       nb.TutorID,
		SubjectID:     nb.SubjectID,
		ScheduledTime: when.UTC(),
		Status:        StatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		if errors.Cause(err) == ErrConflict {
			svc.metrics.BookingRejected("conflict")
			return Detail{}, core.NewValidationError(ErrTutorBusy)
		}
		return Detail{}, errors.Wrap(err, "creating session")
	}
	svc.metrics.SessionBooked()

	det, err := svc.repo.GetSession(ctx, sess.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "reloading session")
	}
	svc.notifyParticipants(det, "session_booked", "Session booked", nil)
	return det, nil
}

func (svc *Service) checkAvailability(ctx context.Context, tutorID int, when time.Time) error {
	ok, err := svc.avail.IsAvailable(ctx, tutorID, when)
	if err != nil {
		return errors.Wrap(err, "checking availability")
	}
	if !ok {
		svc.metrics.BookingRejected("unavailable")
		return core.NewValidationError(ErrTutorUnavailable)
	}
	return nil
}

func (svc *Service) GetSession(ctx context.Context, id int) (Detail, error) {
	return svc.repo.GetSession(ctx, id)
}

// Reschedule moves a scheduled session of one of its participants to a new time.
func (svc *Service) Reschedule(ctx context.Context, actor Actor, id int, r Rescheduling) (Detail, error) {
	det, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !det.HasParticipant(actor.ID) {
		return Detail{}, ErrNotOwnerReschedule
	}
	if det.Status != StatusScheduled {
		return Detail{}, core.NewValidationError(ErrNotReschedulable)
	}

	when, err := core.ParseTimestamp(r.ScheduledTime, svc.conf.Location())
	if err != nil {
		return Detail{}, core.NewValidationError(ErrInvalidScheduledTime, core.FieldError{Field: "scheduled_time", Error: ErrInvalidScheduledTime.Error()})
	}
	if err = svc.checkAvailability(ctx, det.TutorID, when); err != nil {
		return Detail{}, err
	}

	previous := det.ScheduledTime
	if _, err = svc.repo.RescheduleSession(ctx, id, when.UTC()); err != nil {
		switch errors.Cause(err) {
		case ErrConflict:
			svc.metrics.BookingRejected("conflict")
			return Detail{}, core.NewValidationError(ErrTutorBusy)
		case ErrStatusChanged:
			return Detail{}, core.NewValidationError(ErrNotReschedulable)
		}
		return Detail{}, errors.Wrap(err, "rescheduling session")
	}

	if det, err = svc.repo.GetSession(ctx, id); err != nil {
		return Detail{}, errors.Wrap(err, "reloading session")
	}
	svc.notifyParticipants(det, "session_rescheduled", "Session rescheduled", func(data *emailData) {
		data.PreviousWhen = svc.formatWhen(previous)
	})
	return det, nil
}

// Complete closes a scheduled session of tutorID with optional feedback.
func (svc *Service) Complete(ctx context.Context, tutorID, id int, c Completion) (Detail, error) {
	det, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Detail{}, ErrNotFoundOrNotYours
		}
		return Detail{}, err
	}
	if det.TutorID != tutorID {
		return Detail{}, ErrNotFoundOrNotYours
	}

	if err = checkCompletable(det.Status); err != nil {
		return Detail{}, err
	}

	sess := det.Session
	sess.Status = StatusCompleted
	sess.Feedback = c.Feedback
	sess.PerformanceScore = c.PerformanceScore
	sess.UpdatedAt = svc.nowFunc()
	if det.Session, err = svc.repo.UpdateSession(ctx, sess, StatusScheduled); err != nil {
		if errors.Cause(err) == ErrStatusChanged {
			if det, err = svc.repo.GetSession(ctx, id); err != nil {
				return Detail{}, err
			}
			return Detail{}, checkCompletable(det.Status)
		}
		return Detail{}, errors.Wrap(err, "completing session")
	}
	return det, nil
}

func checkCompletable(status string) error {
	switch status {
	case StatusCancelled:
		return core.NewValidationError(ErrCancelledNoComplete)
	case StatusCompleted:
		return core.NewValidationError(ErrAlreadyCompleted)
	}
	return nil
}

// Cancel lets either participant cancel a scheduled session.
func (svc *Service) Cancel(ctx context.Context, actor Actor, id int) (Detail, error) {
	det, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if !det.HasParticipant(actor.ID) {
		return Detail{}, ErrNotOwnerCancel
	}
	return svc.cancel(ctx, actor, det)
}

// TutorCancel cancels a session of tutorID, no later than the configured notice before it starts.
func (svc *Service) TutorCancel(ctx context.Context, actor Actor, id int) (Detail, error) {
	det, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if det.TutorID != actor.ID {
		return Detail{}, ErrNotOwnerCancel
	}
	if err = checkCancellable(det.Status); err != nil {
		return Detail{}, err
	}
	if det.ScheduledTime.Sub(svc.nowFunc()) < svc.conf.Scheduling.TutorCancelNotice {
		return Detail{}, core.NewValidationError(ErrTooLateToCancel)
	}
	return svc.cancel(ctx, actor, det)
}

func checkCancellable(status string) error {
	switch status {
	case StatusCancelled:
		return core.NewValidationError(ErrAlreadyCancelled)
	case StatusCompleted:
		return core.NewValidationError(ErrCompletedNoCancel)
	}
	return nil
}

func (svc *Service) cancel(ctx context.Context, actor Actor, det Detail) (Detail, error) {
	if err := checkCancellable(det.Status); err != nil {
		return Detail{}, err
	}

	sess := det.Session
	sess.Status = StatusCancelled
	sess.UpdatedAt = svc.nowFunc()
	updated, err := svc.repo.UpdateSession(ctx, sess, StatusScheduled)
	if err != nil {
		if errors.Cause(err) == ErrStatusChanged {
			if det, err = svc.repo.GetSession(ctx, det.ID); err != nil {
				return Detail{}, err
			}
			return Detail{}, checkCancellable(det.Status)
		}
		return Detail{}, errors.Wrap(err, "cancelling session")
	}
	det.Session = updated
	svc.metrics.SessionCancelled(actor.Role)

	svc.notifyParticipants(det, "session_cancelled", "Session cancelled", func(data *emailData) {
		data.CancelledBy = actor.Name
	})
	return det, nil
}

// ListMine lists the sessions of a student or tutor, latest first. Admins see every session.
func (svc *Service) ListMine(ctx context.Context, actor Actor) ([]Detail, error) {
	filter := QueryFilter{}
	switch actor.Role {
	case user.RoleTutor:
		filter.TutorID = actor.ID
	case user.RoleAdmin:
	default:
		filter.StudentID = actor.ID
	}
	return svc.query(ctx, filter)
}

// ListForTutor lists every session of a tutor, soonest first.
func (svc *Service) ListForTutor(ctx context.Context, tutorID int) ([]Detail, error) {
	return svc.query(ctx, QueryFilter{TutorID: tutorID, Ascending: true})
}

// Upcoming lists the scheduled sessions of a student that have not started yet, soonest first.
func (svc *Service) Upcoming(ctx context.Context, studentID int) ([]Detail, error) {
	return svc.query(ctx, QueryFilter{
		StudentID: studentID,
		Statuses:  []string{StatusScheduled},
		From:      svc.nowFunc(),
		Ascending: true,
	})
}

func (svc *Service) ListAll(ctx context.Context) ([]Detail, error) {
	return svc.query(ctx, QueryFilter{})
}

func (svc *Service) query(ctx context.Context, filter QueryFilter) ([]Detail, error) {
	sessions, err := svc.repo.QuerySessions(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []Detail{}
	}
	return sessions, nil
}

// SendReminders emails both participants of the scheduled sessions starting within the reminder lead
// of now, once per session. It returns how many sessions were reminded.
func (svc *Service) SendReminders(ctx context.Context, now time.Time) (int, error) {
	notSent := false
	due, err := svc.repo.QuerySessions(ctx, QueryFilter{
		Statuses:     []string{StatusScheduled},
		From:         now,
		To:           now.Add(svc.conf.Scheduling.ReminderLead),
		ReminderSent: &notSent,
		Ascending:    true,
	})
	if err != nil {
		return 0, errors.Wrap(err, "querying due sessions")
	}

	var count int
	for _, det := range due {
		if err = ctx.Err(); err != nil {
			break
		}
		// rendered before the flag is set, so a broken message is retried next sweep
		msgs := svc.participantMessages(det, "session_reminder", "Upcoming session reminder", nil)
		if err := svc.render(msgs); err != nil {
			svc.logger.Error("rendering reminder", err, "session_id", det.ID)
			continue
		}
		claimed, err := svc.repo.MarkReminderSent(ctx, det.ID)
		if err != nil {
			svc.logger.Error("marking reminder sent", err, "session_id", det.ID)
			continue
		}
		if !claimed {
			continue // another instance got it
		}
		if svc.mailSvc != nil {
			svc.mailSvc.SendMessages(msgs...)
		}
		count++
	}
	svc.metrics.RemindersSent(count)
	return count, ctx.Err()
}

type emailData struct {
	RecipientName string
	OtherName     string
	Subject       string
	When          string
	PreviousWhen  string
	CancelledBy   string
}

func (svc *Service) formatWhen(t time.Time) string {
	return t.In(svc.conf.Location()).Format(whenLayout)
}

// notifyParticipants emails the student and the tutor; delivery failures are only logged.
func (svc *Service) notifyParticipants(det Detail, tmpl, subject string, extra func(*emailData)) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(svc.participantMessages(det, tmpl, subject, extra)...)
}

func (svc *Service) participantMessages(det Detail, tmpl, subject string, extra func(*emailData)) []*core.EmailMessage {
	type party struct{ name, email, other string }
	parties := []party{
		{det.StudentName, det.StudentEmail, det.TutorName},
		{det.TutorName, det.TutorEmail, det.StudentName},
	}

	msgs := make([]*core.EmailMessage, 0, len(parties))
	for _, p := range parties {
		if p.email == "" {
			continue
		}
		data := emailData{
			RecipientName: p.name,
			OtherName:     p.other,
			Subject:       det.Subject,
			When:          svc.formatWhen(det.ScheduledTime),
		}
		if extra != nil {
			extra(&data)
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: p.name, Address: p.email}},
			Subject:      subject,
			TemplateName: tmpl,
			TemplateData: data,
		})
	}
	return msgs
}

func (svc *Service) render(msgs []*core.EmailMessage) error {
	for _, m := range msgs {
		if err := m.Render(svc.conf.AppName, svc.conf.FrontendBaseURL); err != nil {
			return errors.Wrapf(err, "rendering %s", m.TemplateName)
		}
	}
	return nil
}

type nopMetrics struct{}

func (nopMetrics) SessionBooked()          {}
func (nopMetrics) BookingRejected(string)  {}
func (nopMetrics) SessionCancelled(string) {}
func (nopMetrics) RemindersSent(int)       {}
