package draft

import (
	"go.uber.org/fx"
)

var Module = fx.Module("draft.module",
	fx.Provide(NewService, NewScheduler),
	fx.Invoke(StartScheduler),
)
