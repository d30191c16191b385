package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mverbeek/buurtlens/internal/logger"
	"github.com/sirupsen/logrus"
)

// authFailureSignature is the database-login-failure fragment searched for in
// an error chain. Substring matching is fragile (driver and locale dependent)
// but is the contract until real driver failure codes are confirmed; swap the
// strategy inside isAuthFailure only.
const authFailureSignature = "Login failed for user"

// JobExecutor is the single-claim contract the worker drives.
type JobExecutor interface {
	ProcessNextJob(ctx context.Context) error
}

// Worker runs the polling loop: one claim-process-update cycle per iteration
// with a fixed sleep in between. Job-level failures keep the loop alive;
// database authentication failures stop it permanently, because retrying a
// connection that cannot authenticate only amplifies the failure.
type Worker struct {
	executor JobExecutor
	interval time.Duration
	logger   *logger.Logger
}

// NewWorker creates a new Worker.
// Parameters:
//   - executor: executor invoked once per iteration.
//   - interval: sleep between iterations.
//   - log: logger instance.
// Returns:
//   - *Worker: initialized worker.
func NewWorker(executor JobExecutor, interval time.Duration, log *logger.Logger) *Worker {
	return &Worker{
		executor: executor,
		interval: interval,
		logger:   log,
	}
}

// Run polls for jobs until the context is cancelled or a fatal
// infrastructure failure occurs.
// Parameters:
//   - ctx: host context; cancellation stops the loop between iterations.
// Returns:
//   - error: ctx.Err() on shutdown, or the fatal infrastructure failure.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Batch job worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Batch job worker stopped")
			return ctx.Err()
		default:
		}

		if err := w.executor.ProcessNextJob(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fatal := isAuthFailure(err)
			if fatal {
				w.logger.WithError(err).Log(logrus.FatalLevel,
					"Database authentication failed; stopping batch job worker permanently")
				return err
			}
			w.logger.WithError(err).Error("Error occurred while processing batch jobs.")
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Batch job worker stopped")
			return ctx.Err()
		case <-time.After(w.interval):
		}
	}
}

// isAuthFailure walks the error chain looking for the database
// authentication failure signature.
func isAuthFailure(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if strings.Contains(e.Error(), authFailureSignature) {
			return true
		}
	}
	return false
}
