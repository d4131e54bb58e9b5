package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) userXP(c *gin.Context) {
	total, err := h.ledger.Total(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  c.Param("id"),
		"total_xp": total,
	})
}

func (h *Handler) userEntries(c *gin.Context) {
	entries, err := h.ledger.Entries(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) verifyUserChain(c *gin.Context) {
	ok, err := h.ledger.VerifyChain(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": c.Param("id"),
		"valid":   ok,
	})
}
