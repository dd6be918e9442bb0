package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-moto/meridian-erp/internal/inventory"
)

const (
	// TaskCostRebuild replays a product's cost ledger into a fresh snapshot.
	TaskCostRebuild = "inventory:cost_rebuild"
)

// CostRebuildPayload names the product to rebuild.
type CostRebuildPayload struct {
	ProductID int64 `json:"product_id"`
}

// NewCostRebuildTask constructs the rebuild task.
func NewCostRebuildTask(productID int64) (*asynq.Task, error) {
	body, err := json.Marshal(CostRebuildPayload{ProductID: productID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCostRebuild, body, asynq.Queue(QueueDefault)), nil
}

// NewCostRebuildHandler builds the handler around the inventory service.
func NewCostRebuildHandler(svc *inventory.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload CostRebuildPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		state, err := svc.RebuildCostState(ctx, payload.ProductID)
		if err != nil {
			return err
		}
		logger.Info("cost state rebuilt",
			slog.Int64("product_id", payload.ProductID),
			slog.String("on_hand", state.OnHandQty.String()),
			slog.String("avg_cost", state.AvgCost.String()))
		return nil
	}
}
