package campaign

import (
	"context"
	"encoding/json"

	"github.com/cannedoxygen/Sui-Raid/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type TerminatePayload struct {
	CampaignID string `json:"campaign_id"`
}

func NewTerminateTask(campaignID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TerminatePayload{CampaignID: campaignID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.CampaignTerminate, payload), nil
}

// HandleTerminateTask ends a campaign the sweep loop flagged as expired.
// Idempotent against a racing manual termination.
func (s *Service) HandleTerminateTask(ctx context.Context, t *asynq.Task) error {
	var payload TerminatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		zap.L().Error("invalid campaign terminate payload", zap.Error(err))
		return nil
	}

	_, err := s.Terminate(ctx, payload.CampaignID, ReasonScheduled)
	if err != nil {
		zap.L().Error("scheduled campaign termination failed",
			zap.String("campaign_id", payload.CampaignID),
			zap.Error(err),
		)
		return err
	}
	return nil
}
