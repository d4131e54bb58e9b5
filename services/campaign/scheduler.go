package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/config"
	"github.com/cannedoxygen/Sui-Raid/pkg/task"
	"github.com/cannedoxygen/Sui-Raid/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler periodically sweeps active campaigns past their end date and
// enqueues a termination task for each. Termination itself is idempotent, so
// sweeping the same campaign twice is harmless.
type Scheduler struct {
	service  *Service
	enqueuer task.Enqueuer
	interval time.Duration

	stop chan struct{}
}

func NewScheduler(svc *Service, enqueuer task.Enqueuer, cfg *config.Config) *Scheduler {
	return &Scheduler{
		service:  svc,
		enqueuer: enqueuer,
		interval: cfg.Engine.SweepInterval,
		stop:     make(chan struct{}),
	}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go s.run()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(s.stop)
			return nil
		},
	})
}

func (s *Scheduler) run() {
	zap.L().Info("[Scheduler] started campaign expiry sweep",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stop:
			zap.L().Info("[Scheduler] campaign expiry sweep stopped")
			return
		}
	}
}

// Sweep enqueues a termination task for every expired campaign.
func (s *Scheduler) Sweep(ctx context.Context) {
	expired, err := s.service.Expired(ctx, time.Now())
	if err != nil {
		zap.L().Error("[Scheduler] campaign sweep failed", zap.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}

	zap.L().Info("[Scheduler] expired campaigns found", zap.Int("count", len(expired)))

	for i := range expired {
		c := &expired[i]
		t, err := NewTerminateTask(c.ID)
		if err != nil {
			zap.L().Error("[Scheduler] failed to build terminate task",
				zap.String("campaign_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		_, err = s.enqueuer.Enqueue(t,
			asynq.TaskID(taskname.CampaignTerminate+":"+c.ID),
			asynq.MaxRetry(5),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			zap.L().Error("[Scheduler] failed to enqueue campaign termination",
				zap.String("campaign_id", c.ID),
				zap.Error(err),
			)
		}
	}
}
