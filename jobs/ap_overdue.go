package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-moto/meridian-erp/internal/ap"
)

const (
	// TaskAPOverdueSweep flips unpaid supplier invoices past their due date.
	TaskAPOverdueSweep = "ap:overdue_sweep"
)

// APOverdueSweepPayload carries scheduling metadata.
type APOverdueSweepPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewAPOverdueSweepTask constructs the sweep task.
func NewAPOverdueSweepTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(APOverdueSweepPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAPOverdueSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewAPOverdueSweepHandler builds the handler around the payable service.
func NewAPOverdueSweepHandler(svc *ap.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload APOverdueSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		flipped, err := svc.MarkOverdue(ctx, payload.AsOf)
		if err != nil {
			return err
		}
		logger.Info("overdue sweep done",
			slog.Int64("flipped", flipped),
			slog.Time("as_of", payload.AsOf))
		return nil
	}
}
