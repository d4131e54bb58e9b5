package raid

import (
	"context"

	"github.com/cannedoxygen/Sui-Raid/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("raid.module",
	fx.Provide(NewService),
	fx.Invoke(registerTaskHandlers),
	fx.Invoke(registerReconciliation),
)

func registerTaskHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskname.RaidTerminate, svc.HandleTerminateTask)
}

func registerReconciliation(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.ReconcilePending(ctx)
		},
	})
}
