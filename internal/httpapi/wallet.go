package httpapi

import (
	"net/http"
	"time"

	"payment-call-system/internal/auth"
	"payment-call-system/internal/reporting"

	"github.com/gin-gonic/gin"
)

type fundRequest struct {
	AmountMinor int64 `json:"amount_minor"`
}

const defaultSummaryWindow = 30 * 24 * time.Hour

func (h Handlers) GetBalance(c *gin.Context) {
	if h.Wallet == nil {
		notConfigured(c, "wallet")
		return
	}
	uid, ok := identity(c)
	if !ok {
		return
	}
	bal, err := h.Wallet.GetBalance(c.Request.Context(), uid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}

// Fund creates a funding intent and returns the provider's payment instructions.
// The balance does not change until the provider confirms payment.
func (h Handlers) Fund(c *gin.Context) {
	if h.Funding == nil {
		notConfigured(c, "funding")
		return
	}
	uid, ok := identity(c)
	if !ok {
		return
	}
	var req fundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	intent, err := h.Funding.InitiateFunding(c.Request.Context(), uid, req.AmountMinor, auth.Email(c.Request.Context()))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, intent)
}

func (h Handlers) ListTransactions(c *gin.Context) {
	if h.Wallet == nil {
		notConfigured(c, "wallet")
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
	txs, err := h.Wallet.ListTransactions(c.Request.Context(), uid, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "limit": limit})
}

// Summary reports spend and call usage. from/to are RFC3339; to defaults to now
// and from to 30 days before to.
func (h Handlers) Summary(c *gin.Context) {
	if h.Reporting == nil {
		notConfigured(c, "reporting")
		return
	}
	uid, ok := identity(c)
	if !ok {
		return
	}

	to := h.now().UTC()
	var err error
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
	}
	from := to.Add(-defaultSummaryWindow)
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
	}

	out, err := h.Reporting.Summary(c.Request.Context(), uid, reporting.TimeRange{From: from, To: to})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
