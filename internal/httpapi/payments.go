package httpapi

import (
	"errors"
	"io"
	"net/http"

	"payment-call-system/internal/funding"
	"payment-call-system/internal/payments"
	"payment-call-system/internal/wallet"
	"payment-call-system/pkg/logger"

	"github.com/gin-gonic/gin"
)

// MonnifyWebhook confirms a payment. The raw body is passed through untouched
// because the signature covers the exact bytes.
//
// A payment for an expired intent is acknowledged with 200 so the provider
// stops redelivering; it is audited for manual reconciliation.
func (h Handlers) MonnifyWebhook(c *gin.Context) {
	if h.Funding == nil {
		notConfigured(c, "funding")
		return
	}
	log := logger.FromGin(c)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	conf, err := h.Funding.ConfirmFunding(c.Request.Context(), funding.Callback{
		RawBody:   body,
		Signature: c.GetHeader(payments.SignatureHeader),
		RemoteIP:  c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			log.Warn("webhook signature rejected", "ip", c.ClientIP())
		case errors.Is(err, wallet.ErrNotFound):
			log.Warn("webhook for unknown reference", "err", err)
		}
		writeError(c, err)
		return
	}

	if conf.Expired {
		log.Warn("payment received for expired intent", "reference", conf.Reference)
	} else {
		log.Info("webhook processed", "reference", conf.Reference, "status", conf.Status, "credited", conf.Credited)
	}
	c.JSON(http.StatusOK, conf)
}
