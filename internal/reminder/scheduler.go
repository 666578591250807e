package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule registers job on a standard five-field cron spec and starts the
// scheduler. Stop the returned cron to end it; runs never overlap.
func Schedule(ctx context.Context, spec string, loc *time.Location, job *Job) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()
		if _, err := job.Run(runCtx); err != nil {
			slog.ErrorContext(runCtx, "Reminder run failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	c.Start()
	slog.InfoContext(ctx, "Reminder scheduler started", "schedule", spec, "location", loc.String())
	return c, nil
}
