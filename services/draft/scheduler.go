package draft

import (
	"context"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler deletes expired drafts on an interval. Expiry is also enforced on
// read, so the sweep only reclaims storage.
type Scheduler struct {
	service  *Service
	interval time.Duration

	stop chan struct{}
}

func NewScheduler(svc *Service, cfg *config.Config) *Scheduler {
	return &Scheduler{
		service:  svc,
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
	zap.L().Info("[Scheduler] started draft expiry sweep",
		zap.Duration("interval", s.interval),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.service.SweepExpired(context.Background(), time.Now()); err != nil {
				zap.L().Error("[Scheduler] draft sweep failed", zap.Error(err))
			}
		case <-s.stop:
			zap.L().Info("[Scheduler] draft expiry sweep stopped")
			return
		}
	}
}
