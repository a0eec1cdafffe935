package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/midden/pkg/entity"
	"github.com/dyluth/midden/pkg/store"
)

// PollForStep polls until the entity's step reaches the wanted execution
// status. Returns the step's status record, or an error if the timeout
// elapses first. Polls every 200ms.
//
// A missing entity or step is not an error: a concurrent workflow may not
// have created it yet, so polling continues.
func PollForStep(ctx context.Context, client *store.Client, entityType, entityID, stepID string, want entity.ExecutionStatus, timeout time.Duration) (*entity.StepStatusRecord, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for step %s to reach %s after %v", stepID, want, timeout)

		case <-ticker.C:
			doc, err := client.Get(entityType, entityID)
			if err != nil {
				if store.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to read entity: %w", err)
			}

			record, ok := doc.StepStatus[stepID]
			if !ok || record.ExecutionStatus != want {
				continue
			}
			return &record, nil
		}
	}
}
