package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cannedoxygen/Sui-Raid/internal/httpapi"
	"github.com/cannedoxygen/Sui-Raid/internal/server"
	"github.com/cannedoxygen/Sui-Raid/pkg/collab"
	"github.com/cannedoxygen/Sui-Raid/pkg/config"
	"github.com/cannedoxygen/Sui-Raid/pkg/db"
	"github.com/cannedoxygen/Sui-Raid/pkg/gen"
	"github.com/cannedoxygen/Sui-Raid/pkg/health"
	"github.com/cannedoxygen/Sui-Raid/pkg/logger"
	"github.com/cannedoxygen/Sui-Raid/pkg/redis"
	"github.com/cannedoxygen/Sui-Raid/pkg/task"
	"github.com/cannedoxygen/Sui-Raid/services/campaign"
	"github.com/cannedoxygen/Sui-Raid/services/draft"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"
	"github.com/cannedoxygen/Sui-Raid/services/raid"
	"github.com/cannedoxygen/Sui-Raid/services/settlement"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		gen.Module,
		collab.Module,
		health.Module,

		ledger.Module,
		settlement.Module,
		raid.Module,
		campaign.Module,
		draft.Module,

		httpapi.Module,
		server.Module,

		fx.Invoke(migrate),
		fx.Invoke(db.Otel),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func migrate(g *gorm.DB) error {
	return g.AutoMigrate(
		&ledger.Entry{},
		&ledger.UserXP{},
		&raid.Raid{},
		&raid.UserAction{},
		&campaign.Campaign{},
		&settlement.Record{},
		&draft.Draft{},
	)
}
