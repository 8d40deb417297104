/*
driver.go - Cron driver for the contract scheduler

PURPOSE:
  Calls Scheduler.Tick on a cron schedule so contracts advance on their own
  as wall-clock time passes. The scheduler itself has no notion of a clock;
  the driver supplies "now".

DESIGN:
  - robfig/cron with SkipIfStillRunning, so a slow tick is never overlapped
  - Each run gets a fresh context bounded by Timeout
  - The last report is kept for GET /api/scheduler
  - RunNow ticks immediately, outside the cron cadence (POST /api/scheduler/tick)

CONFIGURATION:
  - Schedule: cron expression or descriptor ("@every 1m", "0 * * * *")
  - Timeout:  upper bound for one tick (default: 5 minutes)

USAGE:
  driver := NewTickDriver(scheduler, "@every 1m", logger)
  if err := driver.Start(); err != nil { ... }
  // ... later
  driver.Stop()

SEE ALSO:
  - actus/scheduler.go: Tick
  - config/config.go: TICK_SCHEDULE
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
)

// TickDriver runs scheduler ticks on a cron schedule.
type TickDriver struct {
	Scheduler *actus.Scheduler
	Schedule  string
	Timeout   time.Duration
	Clock     func() generic.TimePoint
	Logger    *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	running bool
	last    *actus.TickReport
	lastErr error
}

// NewTickDriver creates a driver ticking on the wall clock.
func NewTickDriver(scheduler *actus.Scheduler, schedule string, logger *zap.Logger) *TickDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickDriver{
		Scheduler: scheduler,
		Schedule:  schedule,
		Timeout:   5 * time.Minute,
		Clock:     generic.Now,
		Logger:    logger,
	}
}

// Start registers the tick job and starts the cron runner. Starting a
// running driver is a no-op.
func (d *TickDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}
	if d.Schedule == "" {
		d.Logger.Info("tick driver disabled, no schedule configured")
		return nil
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{d.Logger.Sugar()}),
		cron.SkipIfStillRunning(cronLogger{d.Logger.Sugar()}),
	))
	id, err := c.AddFunc(d.Schedule, func() {
		if _, err := d.RunNow(context.Background()); err != nil {
			d.Logger.Error("scheduled tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid tick schedule %q: %w", d.Schedule, err)
	}

	d.cron = c
	d.entry = id
	d.running = true
	c.Start()

	d.Logger.Info("tick driver started", zap.String("schedule", d.Schedule))
	return nil
}

// Stop stops the cron runner and waits for a running tick to finish.
func (d *TickDriver) Stop() {
	d.mu.Lock()
	c := d.cron
	running := d.running
	d.running = false
	d.mu.Unlock()

	if !running {
		return
	}
	ctx := c.Stop()
	<-ctx.Done()
	d.Logger.Info("tick driver stopped")
}

// RunNow ticks the scheduler at the driver's clock.
func (d *TickDriver) RunNow(ctx context.Context) (actus.TickReport, error) {
	return d.RunAt(ctx, d.Clock())
}

// RunAt ticks the scheduler at now and records the report.
func (d *TickDriver) RunAt(ctx context.Context, now generic.TimePoint) (actus.TickReport, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	report, err := d.Scheduler.Tick(ctx, now)
	for _, f := range report.Failures {
		d.Logger.Warn("event left pending",
			zap.String("contract_id", string(f.ContractID)),
			zap.Int("index", f.Index),
			zap.Bool("retryable", generic.IsRetryable(f.Err)),
			zap.Error(f.Err))
	}

	d.mu.Lock()
	if !report.Skipped {
		d.last = &report
	}
	d.lastErr = err
	d.mu.Unlock()
	return report, err
}

// DriverStatus describes the cron side of the scheduler.
type DriverStatus struct {
	Schedule  string            `json:"schedule"`
	Running   bool              `json:"running"`
	NextRun   *time.Time        `json:"next_run,omitempty"`
	LastTick  *actus.TickReport `json:"last_tick,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

// Status returns the schedule, the next cron run and the last tick.
func (d *TickDriver) Status() DriverStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := DriverStatus{Schedule: d.Schedule, Running: d.running, LastTick: d.last}
	if d.running {
		if next := d.cron.Entry(d.entry).Next; !next.IsZero() {
			st.NextRun = &next
		}
	}
	if d.lastErr != nil {
		st.LastError = d.lastErr.Error()
	}
	return st
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
