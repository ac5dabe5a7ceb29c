// Package dispatch announces occurrences as their scheduled time passes.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dukerupert/suitecal/internal/model"
)

// Lister is the read side of the occurrence gateway. The range is
// half-open: from inclusive, to exclusive.
type Lister interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Occurrence, error)
}

// Sweeper lists the occurrences that became due since its previous run and
// hands them to notify.
type Sweeper struct {
	mu     sync.Mutex
	store  Lister
	notify func([]model.Occurrence)
	spec   string
	now    func() time.Time
	last   time.Time
	logger *slog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc
}

// NewSweeper builds a Sweeper that runs on the cron spec (standard five
// fields or a descriptor such as "@every 1m").
func NewSweeper(store Lister, spec string, notify func([]model.Occurrence), logger *slog.Logger) *Sweeper {
	return &Sweeper{
		store:  store,
		notify: notify,
		spec:   spec,
		now:    time.Now,
		logger: logger,
	}
}

// Sweep reports occurrences in (last, now]. The first call only records
// now; nothing scheduled before the process started is announced.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) ([]model.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last.IsZero() {
		s.last = now
		return nil, nil
	}
	if !now.After(s.last) {
		return nil, nil
	}

	due, err := s.store.ListBetween(ctx, s.last.Add(time.Nanosecond), now.Add(time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("list due occurrences: %w", err)
	}
	s.last = now

	if len(due) > 0 {
		for _, o := range due {
			s.logger.Info("occurrence due", "id", o.ID, "title", o.Title, "time", o.Time)
		}
		if s.notify != nil {
			s.notify(due)
		}
	}
	return due, nil
}

// Start records the current time as the sweep origin and schedules Sweep.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("sweeper already started")
	}
	ctx, cancel := context.WithCancel(ctx)

	c := cron.New()
	_, err := c.AddFunc(s.spec, func() {
		if _, err := s.Sweep(ctx, s.now()); err != nil {
			s.logger.Error("sweep", "error", err)
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("schedule sweep %q: %w", s.spec, err)
	}

	s.last = s.now()
	s.cancel = cancel
	s.cron = c
	c.Start()
	s.logger.Info("due sweep started", "spec", s.spec)
	return nil
}

// Stop cancels in-flight sweeps and waits for them to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
}
