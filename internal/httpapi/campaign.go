package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"
	"github.com/cannedoxygen/Sui-Raid/services/campaign"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createCampaignRequest struct {
	Name      string    `json:"name"`
	AdminID   string    `json:"admin_id"`
	ChatID    string    `json:"chat_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	TokenType   string          `json:"token_type"`
	TokenSymbol string          `json:"token_symbol"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	TokenPerXP  decimal.Decimal `json:"token_per_xp"`
	ThresholdXP int64           `json:"threshold_xp"`
}

func (h *Handler) createCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	created, err := h.campaigns.Create(c.Request.Context(), campaign.CreateInput{
		Name:        req.Name,
		AdminID:     req.AdminID,
		ChatID:      req.ChatID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		TokenType:   req.TokenType,
		TokenSymbol: req.TokenSymbol,
		TotalBudget: req.TotalBudget,
		TokenPerXP:  req.TokenPerXP,
		ThresholdXP: req.ThresholdXP,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) getCampaign(c *gin.Context) {
	found, err := h.campaigns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, found)
}

type attachRaidRequest struct {
	RaidID string `json:"raid_id"`
}

func (h *Handler) attachRaid(c *gin.Context) {
	var req attachRaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	r, err := h.campaigns.AttachRaid(c.Request.Context(), c.Param("id"), req.RaidID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) campaignUserXP(c *gin.Context) {
	total, err := h.campaigns.UserXP(c.Request.Context(), c.Param("id"), c.Param("userId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"campaign_id": c.Param("id"),
		"user_id":     c.Param("userId"),
		"total_xp":    total,
	})
}

func (h *Handler) terminateCampaign(c *gin.Context) {
	// Body is optional; an empty one means a plain manual termination.
	var req terminateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	reason := campaign.ReasonManual
	if req.Reason == string(campaign.ReasonCancelled) {
		reason = campaign.ReasonCancelled
	}

	terminated, err := h.campaigns.Terminate(c.Request.Context(), c.Param("id"), reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, terminated)
}

func (h *Handler) campaignSettlements(c *gin.Context) {
	records, err := h.settlements.Records(c.Request.Context(), ledger.SourceCampaign, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) retryCampaignSettlement(c *gin.Context) {
	result, err := h.campaigns.RetrySettlement(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
