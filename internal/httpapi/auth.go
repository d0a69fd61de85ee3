package httpapi

import (
	"context"
	"net/http"

	"payment-call-system/internal/auth"
	"payment-call-system/internal/rbac"
	"payment-call-system/internal/users"
	"payment-call-system/pkg/logger"

	"github.com/gin-gonic/gin"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type sessionResponse struct {
	User   users.User     `json:"user"`
	Role   string         `json:"role"`
	Tokens auth.TokenPair `json:"tokens"`
}

type credentialFunc func(ctx context.Context, email, password string) (users.User, error)

// Signup creates an account and returns a token pair.
func (h Handlers) Signup(c *gin.Context) {
	if h.Users == nil || h.Auth == nil {
		notConfigured(c, "auth")
		return
	}
	h.authenticate(c, http.StatusCreated, h.Users.Signup)
}

// Login validates credentials and returns a token pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Users == nil || h.Auth == nil {
		notConfigured(c, "auth")
		return
	}
	h.authenticate(c, http.StatusOK, h.Users.Login)
}

func (h Handlers) authenticate(c *gin.Context, status int, fn credentialFunc) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	u, err := fn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	role := rbac.RoleFor(u.Email, h.AdminEmails)
	pair, err := h.Auth.IssuePair(h.now(), u.ID, u.Email, role)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(status, sessionResponse{User: u, Role: role, Tokens: pair})
}

// Refresh exchanges a refresh token for a new pair. The role is re-derived
// from the admin list, so revoking admin takes effect at the next refresh.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		notConfigured(c, "auth")
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, h.now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	role := rbac.RoleFor(claims.Email, h.AdminEmails)
	pair, err := h.Auth.IssuePair(h.now(), claims.UserID, claims.Email, role)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"role": role, "tokens": pair})
}
