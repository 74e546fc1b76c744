package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultPurgeSchedule is the default cron schedule of the expiry sweep.
const DefaultPurgeSchedule = "@every 1h"

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule reports whether schedule is an accepted cron schedule.
func ValidateSchedule(schedule string) error {
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	return nil
}

// Purger removes expired sessions on a cron schedule.
type Purger struct {
	sched  *cron.Cron
	store  *Store
	logger *zap.Logger
}

// NewPurger creates a Purger for store running on schedule.
func NewPurger(store *Store, schedule string, logger *zap.Logger) (*Purger, error) {
	p := &Purger{
		sched:  cron.New(cron.WithParser(cronParser)),
		store:  store,
		logger: logger,
	}
	if _, err := p.sched.AddFunc(schedule, p.Run); err != nil {
		return nil, fmt.Errorf("schedule session purge: %w", err)
	}
	return p, nil
}

// Start starts the scheduler in the background.
func (p *Purger) Start() {
	p.sched.Start()
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (p *Purger) Stop() {
	<-p.sched.Stop().Done()
}

// Run performs one sweep.
func (p *Purger) Run() {
	defer func() {
		if err := recover(); err != nil {
			p.logger.Error("session purge panicked", zap.Any("error", err))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := p.store.Purge(ctx, time.Now())
	if err != nil {
		p.logger.Error("session purge failed", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("expired sessions purged", zap.Int("count", n))
	}
}
