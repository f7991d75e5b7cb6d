package session

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorconnect/core"
)

// Statuses
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ConflictWindow is how close two active sessions of a tutor may not be.
const ConflictWindow = 59 * time.Minute

// ActiveStatuses are the statuses that hold a tutor's time.
var ActiveStatuses = []string{StatusScheduled, StatusCompleted}

type Session struct {
	ID               int       `json:"id" db:"id"`
	StudentID        int       `json:"student_id" db:"student_id"`
	TutorID          int       `json:"tutor_id" db:"tutor_id"`
	SubjectID        int       `json:"subject_id" db:"subject_id"`
	ScheduledTime    time.Time `json:"scheduled_time" db:"scheduled_time"`
	Status           string    `json:"status" db:"status"`
	Feedback         string    `json:"feedback" db:"feedback"`
	PerformanceScore *int      `json:"performance_score" db:"performance_score"`
	ReminderSent     bool      `json:"reminder_sent" db:"reminder_sent"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the session holds the tutor's time.
func (s Session) IsActive() bool {
	return s.Status == StatusScheduled || s.Status == StatusCompleted
}

// ConflictsWith reports whether an active session at t would clash with s.
func (s Session) ConflictsWith(t time.Time) bool {
	if !s.IsActive() {
		return false
	}
	d := s.ScheduledTime.Sub(t)
	if d < 0 {
		d = -d
	}
	return d <= ConflictWindow
}

// HasParticipant reports whether userID is the session's student or tutor.
func (s Session) HasParticipant(userID int) bool {
	return s.StudentID == userID || s.TutorID == userID
}

// Detail is a Session joined with its participants and subject.
type Detail struct {
	Session
	StudentName  string `json:"student_name" db:"student_name"`
	StudentEmail string `json:"-" db:"student_email"`
	TutorName    string `json:"tutor_name" db:"tutor_name"`
	TutorEmail   string `json:"-" db:"tutor_email"`
	Subject      string `json:"subject" db:"subject"`
}

type QueryFilter struct {
	StudentID    int
	TutorID      int
	Statuses     []string
	From         time.Time // inclusive
	To           time.Time // inclusive
	ReminderSent *bool
	Ascending    bool // by scheduled_time
}

type NewBooking struct {
	TutorID       int    `json:"tutor_id" validate:"required"`
	SubjectID     int    `json:"subject_id" validate:"required"`
	ScheduledTime string `json:"scheduled_time" validate:"required,timestamp"`
}

func (nb *NewBooking) Validate(validate *validator.Validate) error {
	nb.ScheduledTime = core.CleanString(nb.ScheduledTime)
	return validate.Struct(nb)
}

type Rescheduling struct {
	ScheduledTime string `json:"scheduled_time" validate:"required,timestamp"`
}

func (r *Rescheduling) Validate(validate *validator.Validate) error {
	r.ScheduledTime = core.CleanString(r.ScheduledTime)
	return validate.Struct(r)
}

type Completion struct {
	Feedback         string `json:"feedback"`
	PerformanceScore *int   `json:"performance_score" validate:"omitempty,min=1,max=5"`
}

func (c *Completion) Validate(validate *validator.Validate) error {
	c.Feedback = core.CleanString(c.Feedback)
	return validate.Struct(c)
}
