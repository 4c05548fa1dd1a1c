package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// LifecycleWorker processes lifecycle event jobs from the River queue. It is
// the alerting channel that stays up when the billing provider's dashboard
// is not being watched: transitions are logged at info, bridge failures at
// error so log shippers can page on them.
type LifecycleWorker struct {
	river.WorkerDefaults[LifecycleJobArgs]
}

// Work processes a single lifecycle job.
func (w *LifecycleWorker) Work(ctx context.Context, job *river.Job[LifecycleJobArgs]) error {
	if job.Args.Failure != "" {
		slog.ErrorContext(ctx, "provisioning operation failed",
			"event", job.Args.Event,
			"email", job.Args.Email,
			"subdomain", job.Args.Subdomain,
			"failure", job.Args.Failure,
			"job_id", job.ID,
		)
		return nil
	}

	slog.InfoContext(ctx, "customer lifecycle transition",
		"event", job.Args.Event,
		"email", job.Args.Email,
		"subdomain", job.Args.Subdomain,
		"status", job.Args.Status,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
