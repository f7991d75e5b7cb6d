// Package testutil seeds repositories for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/availability"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/user"
)

// Password is set on every user created without an explicit one.
const Password = "l3arn!ng-pwd"

func CreateUser(t *testing.T, repo user.Repository, name, email, role string, createdAt ...time.Time) user.User {
	return SaveUser(t, repo, user.User{FullName: name, Email: email, Role: role}, createdAt...)
}

// CreateTutor creates an approved tutor.
func CreateTutor(t *testing.T, repo user.Repository, name, email, subject, location string, price float64, expYears int) user.User {
	return SaveUser(t, repo, user.User{
		FullName:        name,
		Email:           email,
		Role:            user.RoleTutor,
		Subject:         subject,
		Location:        location,
		Price:           price,
		ExperienceYears: expYears,
		IsApproved:      true,
	})
}

// SaveUser inserts usr, hashing Password when usr has no password yet.
func SaveUser(t *testing.T, repo user.Repository, usr user.User, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr.CreatedAt = tstamp
	usr.UpdatedAt = tstamp
	if len(usr.PasswordHash) == 0 {
		if err := usr.SetPassword(Password); err != nil {
			t.Fatalf("SaveUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("SaveUser() failed: %v", err)
	}
	return usr
}

// AddSlot opens a weekly window for the tutor; day is a weekday name, start and end "HH:MM".
func AddSlot(t *testing.T, repo availability.Repository, tutorID int, day, start, end string) {
	t.Helper()

	startClock, err := core.ParseClock(start)
	if err != nil {
		t.Fatalf("AddSlot() failed: %v", err)
	}
	endClock, err := core.ParseClock(end)
	if err != nil {
		t.Fatalf("AddSlot() failed: %v", err)
	}
	slot := availability.Slot{TutorID: tutorID, DayOfWeek: day, StartTime: startClock, EndTime: endClock}
	if err = repo.CreateSlots(context.Background(), []availability.Slot{slot}); err != nil {
		t.Fatalf("AddSlot() failed: %v", err)
	}
}

// CreateSession stores a session bypassing the booking rules, then moves it to status.
func CreateSession(t *testing.T, repo session.Repository, studentID, tutorID, subjectID int, when time.Time, status string) session.Session {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()
	sess, err := repo.CreateSession(ctx, session.Session{
		StudentID:     studentID,
		TutorID:       tutorID,
		SubjectID:     subjectID,
		ScheduledTime: when.UTC(),
		Status:        session.StatusScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	if status != "" && status != session.StatusScheduled {
		sess.Status = status
		if sess, err = repo.UpdateSession(ctx, sess, session.StatusScheduled); err != nil {
			t.Fatalf("CreateSession() failed: %v", err)
		}
	}
	return sess
}
