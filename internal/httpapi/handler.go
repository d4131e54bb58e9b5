package httpapi

import (
	"net/http"

	"github.com/cannedoxygen/Sui-Raid/pkg/config"
	"github.com/cannedoxygen/Sui-Raid/pkg/health"
	"github.com/cannedoxygen/Sui-Raid/pkg/middleware"
	"github.com/cannedoxygen/Sui-Raid/services/campaign"
	"github.com/cannedoxygen/Sui-Raid/services/draft"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"
	"github.com/cannedoxygen/Sui-Raid/services/raid"
	"github.com/cannedoxygen/Sui-Raid/services/settlement"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("httpapi",
	fx.Provide(NewHandler, ProvideRouter),
)

// Handler is the admin/operator HTTP surface. Participant-facing chat
// interaction lives outside this repository; everything here assumes a
// trusted operator.
type Handler struct {
	raids       *raid.Service
	campaigns   *campaign.Service
	ledger      *ledger.Service
	settlements *settlement.Service
	drafts      *draft.Service
	health      health.HealthService
}

type HandlerParams struct {
	fx.In
	Raids       *raid.Service
	Campaigns   *campaign.Service
	Ledger      *ledger.Service
	Settlements *settlement.Service
	Drafts      *draft.Service
	Health      health.HealthService
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		raids:       p.Raids,
		campaigns:   p.Campaigns,
		ledger:      p.Ledger,
		settlements: p.Settlements,
		drafts:      p.Drafts,
		health:      p.Health,
	}
}

// ProvideRouter builds the gin engine with all routes registered.
func ProvideRouter(cfg *config.Config, h *Handler) http.Handler {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz/live", h.health.Liveness)
	r.GET("/healthz/ready", h.health.Readiness)

	v1 := r.Group("/api/v1")
	{
		raids := v1.Group("/raids")
		raids.POST("", h.createRaid)
		raids.GET("/:id", h.getRaid)
		raids.POST("/:id/actions", h.recordAction)
		raids.POST("/:id/terminate", h.terminateRaid)
		raids.GET("/:id/settlements", h.raidSettlements)
		raids.POST("/:id/settlements/retry", h.retryRaidSettlement)

		campaigns := v1.Group("/campaigns")
		campaigns.POST("", h.createCampaign)
		campaigns.GET("/:id", h.getCampaign)
		campaigns.POST("/:id/raids", h.attachRaid)
		campaigns.GET("/:id/users/:userId/xp", h.campaignUserXP)
		campaigns.POST("/:id/terminate", h.terminateCampaign)
		campaigns.GET("/:id/settlements", h.campaignSettlements)
		campaigns.POST("/:id/settlements/retry", h.retryCampaignSettlement)

		users := v1.Group("/users")
		users.GET("/:id/xp", h.userXP)
		users.GET("/:id/xp/entries", h.userEntries)
		users.GET("/:id/xp/verify", h.verifyUserChain)

		drafts := v1.Group("/drafts")
		drafts.POST("", h.beginDraft)
		drafts.GET("", h.getDraft)
		drafts.POST("/advance", h.advanceDraft)
		drafts.POST("/finish", h.finishDraft)
		drafts.DELETE("", h.cancelDraft)
	}

	return r
}
