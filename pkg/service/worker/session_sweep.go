package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/mnemosyne/pkg/service/think"
	"github.com/secmon-lab/mnemosyne/pkg/utils/errutil"
	"github.com/secmon-lab/mnemosyne/pkg/utils/logging"
)

// DefaultSweepInterval is how often expired think sessions are settled when
// no interval is configured.
const DefaultSweepInterval = 30 * time.Second

// SessionSweepWorker periodically settles expired think sessions so that
// idle, untouched sessions still get their thoughts auto-saved. Sessions
// touched by normal traffic are settled lazily; this worker only covers the
// silent ones.
//
// Architecture assumptions:
// - Single server instance; sessions live in process memory only
type SessionSweepWorker struct {
	manager   *think.Manager
	interval  time.Duration
	scheduler gocron.Scheduler
}

// NewSessionSweepWorker creates a worker sweeping the given session manager.
func NewSessionSweepWorker(manager *think.Manager, interval time.Duration) (*SessionSweepWorker, error) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create scheduler")
	}

	return &SessionSweepWorker{
		manager:   manager,
		interval:  interval,
		scheduler: scheduler,
	}, nil
}

// Start registers the sweep job and begins the background loop. Does not
// block server startup.
func (w *SessionSweepWorker) Start(ctx context.Context) error {
	logging.Default().Info("session sweep worker starting",
		"interval", w.interval.String())

	_, err := w.scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			w.sweep(ctx)
		}),
		gocron.WithName("think_session_sweep"),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to register sweep job")
	}

	w.scheduler.Start()
	return nil
}

// Stop shuts down the scheduler and waits for a running sweep to finish.
func (w *SessionSweepWorker) Stop() {
	logging.Default().Info("session sweep worker stopping")
	if err := w.scheduler.Shutdown(); err != nil {
		errutil.Handle(context.Background(), err, "failed to shut down sweep scheduler")
	}
	logging.Default().Info("session sweep worker stopped")
}

// sweep performs a single sweep cycle. Failures keep their sessions live and
// are retried next interval.
func (w *SessionSweepWorker) sweep(ctx context.Context) {
	results, err := w.manager.SweepExpired(ctx)
	if err != nil {
		errutil.Handle(ctx, err, "session sweep failed (will retry next interval)")
	}
	for _, r := range results {
		logging.Default().Info("expired think session auto-saved",
			"session_id", r.SessionID,
			"memory_id", r.MemoryID)
	}
}
