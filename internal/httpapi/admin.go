package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"payment-call-system/internal/auth"
	"payment-call-system/internal/wallet"
	"payment-call-system/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type adjustmentRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Reason      string `json:"reason"`

	// IdempotencyKey makes a retried adjustment a replay. Optional.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

type adjustment struct {
	ownerID   string
	reference string
	req       adjustmentRequest
	actorID   string
	actorRole string
}

func (h Handlers) adjustmentReference(key string) string {
	if key = strings.TrimSpace(key); key != "" {
		return wallet.AdjustmentReferencePrefix + key
	}
	return fmt.Sprintf("%s%d_%s", wallet.AdjustmentReferencePrefix, h.now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func (h Handlers) bindAdjustment(c *gin.Context) (adjustment, bool) {
	if h.Wallet == nil {
		notConfigured(c, "wallet")
		return adjustment{}, false
	}
	ownerID := strings.TrimSpace(c.Param("owner_id"))
	if ownerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "owner_id required"})
		return adjustment{}, false
	}
	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return adjustment{}, false
	}
	if strings.TrimSpace(req.Reason) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reason required"})
		return adjustment{}, false
	}
	actorID, _ := auth.UserID(c.Request.Context())
	actorRole, _ := auth.Role(c.Request.Context())
	return adjustment{
		ownerID:   ownerID,
		reference: h.adjustmentReference(req.IdempotencyKey),
		req:       req,
		actorID:   actorID,
		actorRole: actorRole,
	}, true
}

func (h Handlers) audit(c *gin.Context, a adjustment, direction string) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.LogAdminAdjustment(c.Request.Context(), a.actorID, a.actorRole, c.ClientIP(), a.ownerID, a.reference, a.req.AmountMinor, direction, a.req.Reason); err != nil {
		logger.FromGin(c).Error("audit append failed", "reference", a.reference, "err", err)
	}
}

// AdminDebit takes money from a wallet, e.g. for a chargeback. Same rules as any debit.
func (h Handlers) AdminDebit(c *gin.Context) {
	a, ok := h.bindAdjustment(c)
	if !ok {
		return
	}
	tx, err := h.Wallet.Debit(c.Request.Context(), a.ownerID, a.req.AmountMinor, a.reference, wallet.Metadata{
		"reason":  a.req.Reason,
		"actorId": a.actorID,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.audit(c, a, "debit")
	c.JSON(http.StatusOK, tx)
}

// AdminCredit adds money outside the payment provider. It goes through the same
// pending -> success path as a funded intent.
func (h Handlers) AdminCredit(c *gin.Context) {
	a, ok := h.bindAdjustment(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.Wallet.RegisterPending(ctx, a.ownerID, a.req.AmountMinor, a.reference, wallet.Metadata{
		"reason":  a.req.Reason,
		"actorId": a.actorID,
	}); err != nil {
		writeError(c, err)
		return
	}
	tx, err := h.Wallet.Credit(ctx, a.reference, a.req.AmountMinor)
	if err != nil {
		writeError(c, err)
		return
	}
	h.audit(c, a, "credit")
	c.JSON(http.StatusOK, tx)
}

// AdminExpireFunding runs the intent expiry sweep now.
func (h Handlers) AdminExpireFunding(c *gin.Context) {
	if h.Funding == nil {
		notConfigured(c, "funding")
		return
	}
	expired, err := h.Funding.ExpireStale(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	refs := make([]string, 0, len(expired))
	for _, t := range expired {
		refs = append(refs, t.Reference)
	}
	c.JSON(http.StatusOK, gin.H{"expired": len(expired), "references": refs})
}
