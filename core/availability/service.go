package availability

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/core"
)

type (
	Repository interface {
		QuerySlots(ctx context.Context, tutorID int) ([]Slot, error)
		DeleteSlots(ctx context.Context, tutorID int) error
		CreateSlots(ctx context.Context, slots []Slot) error
	}

	Service struct {
		repo Repository
		txr  core.Transactor
		loc  *time.Location
	}
)

// NewService matches booking times against slots in loc.
func NewService(repo Repository, txr core.Transactor, loc *time.Location) *Service {
	return &Service{repo: repo, txr: txr, loc: loc}
}

// Replace deletes every slot of the tutor then inserts the new ones, atomically.
func (svc *Service) Replace(ctx context.Context, tutorID int, up Update) ([]Slot, error) {
	slots := make([]Slot, 0, len(up.Slots))
	for _, ns := range up.Slots {
		slots = append(slots, ns.toSlot(tutorID))
	}

	err := svc.txr.WithinTx(ctx, func(ctx context.Context) error {
		if err := svc.repo.DeleteSlots(ctx, tutorID); err != nil {
			return errors.Wrap(err, "deleting slots")
		}
		if len(slots) == 0 {
			return nil
		}
		return errors.Wrap(svc.repo.CreateSlots(ctx, slots), "creating slots")
	})
	if err != nil {
		return nil, err
	}
	return svc.List(ctx, tutorID)
}

func (svc *Service) List(ctx context.Context, tutorID int) ([]Slot, error) {
	slots, err := svc.repo.QuerySlots(ctx, tutorID)
	if err != nil {
		return nil, errors.Wrap(err, "querying slots")
	}
	Sort(slots)
	return slots, nil
}

// IsAvailable reports whether t falls inside one of the tutor's weekly windows.
func (svc *Service) IsAvailable(ctx context.Context, tutorID int, t time.Time) (bool, error) {
	slots, err := svc.repo.QuerySlots(ctx, tutorID)
	if err != nil {
		return false, errors.Wrap(err, "querying slots")
	}
	return Covers(slots, t, svc.loc), nil
}

func (svc *Service) Location() *time.Location { return svc.loc }
