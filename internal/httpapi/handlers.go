package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"payment-call-system/internal/audit"
	"payment-call-system/internal/auth"
	"payment-call-system/internal/calls"
	"payment-call-system/internal/funding"
	"payment-call-system/internal/payments"
	"payment-call-system/internal/pricing"
	"payment-call-system/internal/reporting"
	"payment-call-system/internal/users"
	"payment-call-system/internal/wallet"
	"payment-call-system/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	Users       *users.Service
	AdminEmails []string

	Wallet    *wallet.Service
	Funding   *funding.Orchestrator
	Calls     *calls.Service
	Pricing   *pricing.Service
	Reporting *reporting.Service
	Audit     *audit.Service

	Now func() time.Time
}

const (
	defaultLimit = 20
	maxLimit     = 100

	maxWebhookBody = 1 << 20
)

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// identity reads the caller set by auth.RequireAccessToken.
func identity(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return "", false
	}
	return uid, true
}

// parseLimit reads ?limit=, defaulting to 20 and capping at 100.
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}

// statusFor maps domain errors to HTTP status codes. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrInvalidArgument),
		errors.Is(err, calls.ErrInvalidOperand),
		errors.Is(err, calls.ErrInvalidArgument),
		errors.Is(err, users.ErrInvalidInput),
		errors.Is(err, pricing.ErrInvalidPricingReq),
		errors.Is(err, reporting.ErrInvalidRequest),
		errors.Is(err, payments.ErrMalformedNotification):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, payments.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, calls.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, calls.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, wallet.ErrConflict),
		errors.Is(err, wallet.ErrDuplicateReference),
		errors.Is(err, wallet.ErrIntentExpired),
		errors.Is(err, users.ErrEmailTaken),
		errors.Is(err, calls.ErrCallFailed):
		return http.StatusConflict
	case errors.Is(err, calls.ErrCallLimitReached):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func notConfigured(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": what + " not configured"})
}
