package raid

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type TerminatePayload struct {
	RaidID string `json:"raid_id"`
}

func NewTerminateTask(raidID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TerminatePayload{RaidID: raidID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.RaidTerminate, payload), nil
}

// HandleTerminateTask ends a raid when its scheduled end time fires. The
// terminate call is idempotent, so a task that raced a manual termination is
// a harmless no-op.
func (s *Service) HandleTerminateTask(ctx context.Context, t *asynq.Task) error {
	var payload TerminatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid raid terminate payload", zap.Error(err))
		return nil
	}

	_, err := s.Terminate(ctx, payload.RaidID, ReasonScheduled)
	if err != nil {
		zap.L().Error("scheduled raid termination failed",
			zap.String("raid_id", payload.RaidID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// ReconcilePending re-arms termination for every active raid after a restart.
// Overdue raids are terminated on the spot; future ones are re-enqueued. The
// task id dedupe makes re-enqueueing an already scheduled raid a no-op.
func (s *Service) ReconcilePending(ctx context.Context) error {
	var raids []Raid
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_time IS NOT NULL", StatusActive).
		Find(&raids).Error
	if err != nil {
		return err
	}

	now := time.Now()
	for i := range raids {
		r := &raids[i]
		if !r.EndTime.After(now) {
			if _, err := s.Terminate(ctx, r.ID, ReasonScheduled); err != nil {
				zap.L().Error("overdue raid termination failed",
					zap.String("raid_id", r.ID),
					zap.Error(err),
				)
			}
			continue
		}
		if err := s.scheduleTermination(r); err != nil {
			zap.L().Error("failed to re-schedule raid termination",
				zap.String("raid_id", r.ID),
				zap.Error(err),
			)
		}
	}

	zap.L().Info("raid termination schedule reconciled", zap.Int("active_raids", len(raids)))
	return nil
}
