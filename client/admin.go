package client

import (
	"context"
	"fmt"

	cronlib "github.com/robfig/cron/v3"

	"github.com/openjobspec/ojs-go/wire"
)

// cronParser accepts standard 5-field cron expressions and descriptors
// like "@every 30s" or "@daily", matching what conforming coordinators
// evaluate.
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ValidateCron reports whether expr is a schedule expression the
// coordinator will accept.
func ValidateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("ojs: invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// EnsureQueue creates the queue if it does not exist and applies the
// given configuration if it does.
func (c *Client) EnsureQueue(ctx context.Context, q wire.Queue) error {
	if q.Name == "" {
		return fmt.Errorf("ojs: ensure queue: empty name")
	}
	return c.coord.EnsureQueue(ctx, q)
}

// UpsertSchedule creates or replaces a recurring schedule. The cron
// expression is validated locally before anything is sent, so a typo
// fails fast instead of surfacing as a coordinator rejection.
func (c *Client) UpsertSchedule(ctx context.Context, req *wire.ScheduleRequest) (*wire.Schedule, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("ojs: upsert schedule: empty name")
	}
	if req.Job == nil || req.Job.Type == "" {
		return nil, fmt.Errorf("ojs: upsert schedule %q: no job to enqueue", req.Name)
	}
	if err := ValidateCron(req.Cron); err != nil {
		return nil, err
	}
	return c.coord.UpsertSchedule(ctx, req)
}

// DeleteSchedule removes a recurring schedule by name. Deleting an
// unknown schedule is not an error.
func (c *Client) DeleteSchedule(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("ojs: delete schedule: empty name")
	}
	err := c.coord.DeleteSchedule(ctx, name)
	if wire.IsNotFound(err) {
		return nil
	}
	return err
}
