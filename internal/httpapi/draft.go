package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"
	"github.com/cannedoxygen/Sui-Raid/services/draft"

	"github.com/gin-gonic/gin"
)

type draftKeyRequest struct {
	AdminID string `json:"admin_id"`
	ChatID  string `json:"chat_id"`
	Kind    string `json:"kind"`
}

type advanceDraftRequest struct {
	draftKeyRequest
	Answers json.RawMessage `json:"answers"`
}

func (h *Handler) beginDraft(c *gin.Context) {
	var req draftKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	d, err := h.drafts.Begin(c.Request.Context(), req.AdminID, req.ChatID, draft.Kind(req.Kind))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *Handler) getDraft(c *gin.Context) {
	d, err := h.drafts.Get(c.Request.Context(),
		c.Query("admin_id"), c.Query("chat_id"), draft.Kind(c.Query("kind")))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) advanceDraft(c *gin.Context) {
	var req advanceDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	d, err := h.drafts.Advance(c.Request.Context(),
		req.AdminID, req.ChatID, draft.Kind(req.Kind), req.Answers)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) finishDraft(c *gin.Context) {
	var req draftKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", err))
		return
	}

	payload, err := h.drafts.Finish(c.Request.Context(),
		req.AdminID, req.ChatID, draft.Kind(req.Kind))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": payload})
}

func (h *Handler) cancelDraft(c *gin.Context) {
	err := h.drafts.Cancel(c.Request.Context(),
		c.Query("admin_id"), c.Query("chat_id"), draft.Kind(c.Query("kind")))
	if err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
