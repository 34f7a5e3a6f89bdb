// Package jobs runs background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper moves sent invoices past their due date to overdue.
type Sweeper interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

const sweepTimeout = 2 * time.Minute

type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     *logrus.Logger
	now     func() time.Time
}

// NewScheduler registers the overdue sweep under schedule, a standard cron
// expression or descriptor such as "@hourly".
func NewScheduler(schedule string, sweeper Sweeper, log *logrus.Logger) (*Scheduler, error) {
	logger := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		sweeper: sweeper,
		log:     log,
		now:     time.Now,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid OVERDUE_SWEEP_SCHEDULE %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := Sweep(ctx, s.sweeper, s.log, s.now()); err != nil {
		s.log.WithError(err).Error("overdue sweep failed")
	}
}

// Sweep runs one overdue sweep as of now.
func Sweep(ctx context.Context, sweeper Sweeper, log *logrus.Logger, now time.Time) (int64, error) {
	start := time.Now()
	n, err := sweeper.MarkOverdue(ctx, now)
	if err != nil {
		return 0, err
	}
	log.WithFields(logrus.Fields{
		"marked":      n,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("overdue sweep finished")
	return n, nil
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
