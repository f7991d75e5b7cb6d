// Package scheduler runs the session reminder sweep in the background.
package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/tutorconnect/core"
)

const lockKey = "tutorconnect:reminders:lock"

type (
	// Sweeper sends the reminders due at now.
	Sweeper interface {
		SendReminders(ctx context.Context, now time.Time) (int, error)
	}

	FailureCounter interface {
		SweepFailed()
	}

	Scheduler struct {
		sweeper  Sweeper
		redis    *redis.Client // optional
		failures FailureCounter
		logger   core.Logger
		interval time.Duration
		timeout  time.Duration
		nowFunc  func() time.Time
		stopChan chan struct{}
		done     chan struct{}
	}
)

// New returns a Scheduler sweeping every Scheduling.ReminderInterval. With a redis client, only one
// process sweeps per interval.
func New(sweeper Sweeper, rdb *redis.Client, failures FailureCounter, logger core.Logger, conf *core.Config) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		redis:    rdb,
		failures: failures,
		logger:   logger,
		interval: conf.Scheduling.ReminderInterval,
		timeout:  conf.Scheduling.ReminderTimeout,
		nowFunc:  func() time.Time { return time.Now().UTC() },
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting reminder scheduler", "interval", s.interval.String())
	go s.run(ctx)
}

// Stop waits for the running sweep to return.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping reminder scheduler")
	close(s.stopChan)
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.Sweep(ctx)
	if err != nil {
		if s.failures != nil {
			s.failures.SweepFailed()
		}
		s.logger.Error("sending reminders", err)
		return
	}
	if n > 0 {
		s.logger.Info("reminders sent", "count", n)
	}
}

// Sweep runs one sweep unless another process holds the lock.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	if s.redis != nil {
		// the lock expires with the interval: one sweep per tick across processes
		acquired, err := s.redis.SetNX(ctx, lockKey, "1", s.interval).Result()
		if err != nil {
			return 0, errors.Wrap(err, "acquiring lock")
		}
		if !acquired {
			return 0, nil
		}
	}
	return s.sweeper.SendReminders(ctx, s.nowFunc())
}
