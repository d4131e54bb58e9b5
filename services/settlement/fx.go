package settlement

import (
	"go.uber.org/fx"
)

var Module = fx.Module("settlement.module",
	fx.Provide(NewService),
)
