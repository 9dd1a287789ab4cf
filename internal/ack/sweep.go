package ack

import (
	"context"
	"fmt"
	"time"

	"github.com/agentmaild/agentmail/internal/eventbus"
	"github.com/agentmaild/agentmail/internal/store/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSweepInterval is the spec's default background sweep cadence
// (spec §4.5), overridable via ACK_SWEEP_INTERVAL.
const DefaultSweepInterval = 60 * time.Second

// Sweep runs sweepOnce on a ticker until ctx is canceled. Safe to run
// on multiple servers sharing the same store: every transition is a
// conditional UPDATE guarded by `state = pending`, so two sweeps racing on
// the same row simply have one of them update zero rows.
func (e *Engine) Sweep(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "ack_sweep"))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.sweepOnce(ctx)
			if err != nil {
				logger.Warn("sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("flipped overdue acks", zap.Int("count", n))
			}
		}
	}
}

func (e *Engine) sweepOnce(ctx context.Context) (int, error) {
	var flipped []struct {
		AckID      int64
		DeliveryID int64
		ProjectID  int64
	}
	now := e.store.Clock().NowMillis()

	err := e.store.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		err := tx.Table("acks AS ak").
			Joins("JOIN deliveries AS d ON d.id = ak.delivery_id").
			Joins("JOIN messages AS m ON m.id = d.message_id").
			Joins("JOIN threads AS t ON t.id = m.thread_id").
			Where("ak.state = ? AND ak.deadline_ms < ?", model.AckPending, now).
			Select("ak.id AS ack_id, ak.delivery_id AS delivery_id, t.project_id AS project_id").
			Find(&flipped).Error
		if err != nil {
			return err
		}
		if len(flipped) == 0 {
			return nil
		}

		var ackIDs, deliveryIDs []int64
		for _, f := range flipped {
			ackIDs = append(ackIDs, f.AckID)
			deliveryIDs = append(deliveryIDs, f.DeliveryID)
		}

		if err := tx.Model(&model.Ack{}).Where("id IN ? AND state = ?", ackIDs, model.AckPending).
			Update("state", model.AckOverdue).Error; err != nil {
			return err
		}
		return tx.Model(&model.Delivery{}).Where("id IN ? AND state = ?", deliveryIDs, model.DeliveryDelivered).
			Update("state", model.DeliveryOverdue).Error
	})
	if err != nil {
		return 0, fmt.Errorf("ack: sweep: %w", err)
	}

	for _, f := range flipped {
		e.bus.PublishAt(eventbus.TopicAckOverdue, f.ProjectID, now, map[string]any{
			"ack_id":      f.AckID,
			"delivery_id": f.DeliveryID,
		})
	}
	return len(flipped), nil
}
