package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/openjobspec/ojs-go/job"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Func {
	return func(ctx context.Context, ex *job.Execution, next Next) (any, error) {
		logger.Info("job started",
			slog.String("job_type", ex.Job.Type),
			slog.String("job_id", ex.Job.ID.String()),
			slog.String("queue", ex.Job.Queue),
			slog.Int("attempt", ex.Job.Attempt),
		)

		start := time.Now()
		result, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job failed",
				slog.String("job_type", ex.Job.Type),
				slog.String("job_id", ex.Job.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("job_type", ex.Job.Type),
				slog.String("job_id", ex.Job.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return result, err
	}
}
