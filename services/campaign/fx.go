package campaign

import (
	"github.com/cannedoxygen/Sui-Raid/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.module",
	fx.Provide(NewService, NewScheduler),
	fx.Invoke(registerTaskHandlers),
	fx.Invoke(StartScheduler),
)

func registerTaskHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskname.CampaignTerminate, svc.HandleTerminateTask)
}
