package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"
	"github.com/cannedoxygen/Sui-Raid/services/raid"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createRaidRequest struct {
	TweetID         string `json:"tweet_id"`
	TweetURL        string `json:"tweet_url"`
	AdminID         string `json:"admin_id"`
	ChatID          string `json:"chat_id"`
	DurationSeconds int64  `json:"duration_seconds"`

	TargetLikes    int64 `json:"target_likes"`
	TargetRetweets int64 `json:"target_retweets"`
	TargetComments int64 `json:"target_comments"`

	TokenType   string          `json:"token_type"`
	TokenSymbol string          `json:"token_symbol"`
	TotalReward decimal.Decimal `json:"total_reward"`
	TokenPerXP  decimal.Decimal `json:"token_per_xp"`
	ThresholdXP int64           `json:"threshold_xp"`

	CampaignID          string `json:"campaign_id"`
	RequireVerification bool   `json:"require_verification"`
}

func (h *Handler) createRaid(c *gin.Context) {
	var req createRaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	r, err := h.raids.Activate(c.Request.Context(), raid.CreateInput{
		TweetID:             req.TweetID,
		TweetURL:            req.TweetURL,
		AdminID:             req.AdminID,
		ChatID:              req.ChatID,
		Duration:            time.Duration(req.DurationSeconds) * time.Second,
		TargetLikes:         req.TargetLikes,
		TargetRetweets:      req.TargetRetweets,
		TargetComments:      req.TargetComments,
		TokenType:           req.TokenType,
		TokenSymbol:         req.TokenSymbol,
		TotalReward:         req.TotalReward,
		TokenPerXP:          req.TokenPerXP,
		ThresholdXP:         req.ThresholdXP,
		CampaignID:          req.CampaignID,
		RequireVerification: req.RequireVerification,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) getRaid(c *gin.Context) {
	r, err := h.raids.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type recordActionRequest struct {
	UserID     string `json:"user_id"`
	ActionType string `json:"action_type"`
	raid.ActionData
}

func (h *Handler) recordAction(c *gin.Context) {
	var req recordActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	action, err := h.raids.RecordAction(c.Request.Context(),
		c.Param("id"), req.UserID, raid.ActionType(req.ActionType), req.ActionData)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, action)
}

type terminateRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) terminateRaid(c *gin.Context) {
	// Body is optional; an empty one means a plain manual termination.
	var req terminateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	reason := raid.ReasonManual
	if req.Reason == string(raid.ReasonCancelled) {
		reason = raid.ReasonCancelled
	}

	r, err := h.raids.Terminate(c.Request.Context(), c.Param("id"), reason)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) raidSettlements(c *gin.Context) {
	records, err := h.settlements.Records(c.Request.Context(), ledger.SourceRaid, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *Handler) retryRaidSettlement(c *gin.Context) {
	result, err := h.raids.RetrySettlement(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
