package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type initiateCallRequest struct {
	ReceiverID string `json:"receiver_id"`

	// CostPerMinute is optional; the active default rate applies when zero.
	CostPerMinute int64 `json:"cost_per_minute"`
}

func (h Handlers) InitiateCall(c *gin.Context) {
	if h.Calls == nil || h.Pricing == nil {
		notConfigured(c, "calls")
		return
	}
	uid, ok := identity(c)
	if !ok {
		return
	}
	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.ReceiverID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "receiver_id required"})
		return
	}

	rate, err := h.Pricing.ResolveRate(c.Request.Context(), req.CostPerMinute)
	if err != nil {
		writeError(c, err)
		return
	}
	sess, err := h.Calls.InitiateCall(c.Request.Context(), uid, req.ReceiverID, rate)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// EndCall settles the call. Retrying after a timeout is safe.
func (h Handlers) EndCall(c *gin.Context) {
	if h.Calls == nil {
		notConfigured(c, "calls")
		return
	}
	uid, ok := identity(c)
	if !ok {
		return
	}
	sess, err := h.Calls.EndCall(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h Handlers) CallHistory(c *gin.Context) {
	if h.Calls == nil {
		notConfigured(c, "calls")
		return
	}
	uid, ok := identity(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	out, err := h.Calls.History(c.Request.Context(), uid, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": out, "limit": limit})
}

func (h Handlers) GetCall(c *gin.Context) {
	if h.Calls == nil {
		notConfigured(c, "calls")
		return
	}
	uid, ok := identity(c)
	if !ok {
		return
	}
	sess, err := h.Calls.GetForParticipant(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}
