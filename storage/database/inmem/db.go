// Package inmemdb keeps every table in memory. It backs the tests and the "memory" database engine.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/tutorconnect/core/application"
	"github.com/trezcool/tutorconnect/core/availability"
	"github.com/trezcool/tutorconnect/core/review"
	"github.com/trezcool/tutorconnect/core/session"
	"github.com/trezcool/tutorconnect/core/subject"
	"github.com/trezcool/tutorconnect/core/user"
)

// SeedSubjects are inserted by Open, in this order.
var SeedSubjects = []string{
	"Biology", "Chemistry", "Computer Science", "English", "French",
	"Geography", "History", "Mathematics", "Physics",
}

type txKey struct{}

type (
	DB struct {
		mutex sync.RWMutex
		txMu  sync.Mutex
		pk    map[string]int // per table
		t     tables
	}

	tables struct {
		users        map[int]user.User
		subjects     map[int]subject.Subject
		slots        map[int]availability.Slot
		sessions     map[int]session.Session
		reviews      map[int]review.Review
		applications map[int]application.Application
	}
)

func Open() *DB {
	db := &DB{pk: make(map[string]int), t: tables{
		users:        make(map[int]user.User),
		subjects:     make(map[int]subject.Subject),
		slots:        make(map[int]availability.Slot),
		sessions:     make(map[int]session.Session),
		reviews:      make(map[int]review.Review),
		applications: make(map[int]application.Application),
	}}
	for _, name := range SeedSubjects {
		id := db.nextID("subjects")
		db.t.subjects[id] = subject.Subject{ID: id, Name: name}
	}
	return db
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) int {
	db.pk[table]++
	return db.pk[table]
}

func (t tables) clone() tables {
	c := tables{
		users:        make(map[int]user.User, len(t.users)),
		subjects:     make(map[int]subject.Subject, len(t.subjects)),
		slots:        make(map[int]availability.Slot, len(t.slots)),
		sessions:     make(map[int]session.Session, len(t.sessions)),
		reviews:      make(map[int]review.Review, len(t.reviews)),
		applications: make(map[int]application.Application, len(t.applications)),
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.subjects {
		c.subjects[k] = v
	}
	for k, v := range t.slots {
		c.slots[k] = v
	}
	for k, v := range t.sessions {
		c.sessions[k] = v
	}
	for k, v := range t.reviews {
		c.reviews[k] = v
	}
	for k, v := range t.applications {
		c.applications[k] = v
	}
	return c
}

// WithinTx runs transactions one at a time and restores the tables when fn fails.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mutex.RLock()
	snapshot := db.t.clone()
	db.mutex.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		db.mutex.Lock()
		db.t = snapshot
		db.mutex.Unlock()
		return err
	}
	return nil
}
