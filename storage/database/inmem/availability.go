package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/tutorconnect/core/availability"
)

type availabilityRepository struct {
	db *DB
}

func NewAvailabilityRepository(db *DB) availability.Repository {
	return &availabilityRepository{db: db}
}

func (repo *availabilityRepository) QuerySlots(_ context.Context, tutorID int) ([]availability.Slot, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	slots := make([]availability.Slot, 0)
	for _, s := range repo.db.t.slots {
		if s.TutorID == tutorID {
			slots = append(slots, s)
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots, nil
}

func (repo *availabilityRepository) DeleteSlots(_ context.Context, tutorID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, s := range repo.db.t.slots {
		if s.TutorID == tutorID {
			delete(repo.db.t.slots, id)
		}
	}
	return nil
}

func (repo *availabilityRepository) CreateSlots(_ context.Context, slots []availability.Slot) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range slots {
		s.ID = repo.db.nextID("slots")
		repo.db.t.slots[s.ID] = s
	}
	return nil
}
