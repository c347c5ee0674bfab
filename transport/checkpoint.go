package transport

import (
	"context"

	"github.com/openjobspec/ojs-go/durable"
	"github.com/openjobspec/ojs-go/id"
	"github.com/openjobspec/ojs-go/wire"
)

// CheckpointClient is the coordinator-backed durable.CheckpointStore.
// Durable executions load their checkpoint through it before the handler
// runs and save through it after every completed step.
type CheckpointClient struct {
	coord *Coordinator
}

var _ durable.CheckpointStore = (*CheckpointClient)(nil)

// NewCheckpointClient builds a checkpoint store over a coordinator.
func NewCheckpointClient(coord *Coordinator) *CheckpointClient {
	return &CheckpointClient{coord: coord}
}

// Load fetches the checkpoint for a job, returning (nil, nil) when the
// coordinator has none.
func (c *CheckpointClient) Load(ctx context.Context, jobID id.JobID) (*durable.Snapshot, error) {
	resp, err := c.coord.CheckpointGet(ctx, jobID)
	if err != nil {
		if wire.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if !resp.HasCheckpoint {
		return nil, nil
	}
	return resp.Checkpoint, nil
}

// Save persists the checkpoint, replacing any previous one.
func (c *CheckpointClient) Save(ctx context.Context, jobID id.JobID, snap *durable.Snapshot) error {
	return c.coord.CheckpointSave(ctx, jobID, snap)
}

// Delete discards the checkpoint. A missing checkpoint is not an error.
func (c *CheckpointClient) Delete(ctx context.Context, jobID id.JobID) error {
	err := c.coord.CheckpointDelete(ctx, jobID)
	if wire.IsNotFound(err) {
		return nil
	}
	return err
}
