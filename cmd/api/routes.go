package main

import (
	"net/http"

	"payment-call-system/internal/auth"
	"payment-call-system/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app) {
	h := a.handlers

	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if err := a.ready(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/signup", h.Signup)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	// Provider webhooks (public, authenticated by HMAC signature).
	r.POST("/payments/monnify/webhook", h.MonnifyWebhook)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(a.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "email": auth.Email(c.Request.Context()), "role": role})
		})

		wallet := v1.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.POST("/fund", h.Fund)
			wallet.GET("/transactions", h.ListTransactions)
			wallet.GET("/summary", h.Summary)
		}

		calls := v1.Group("/calls")
		calls.Use(rbac.RequireAnyRole(rbac.RoleUser))
		{
			calls.POST("/initiate", h.InitiateCall)
			calls.POST("/:id/end", h.EndCall)
			calls.GET("/history", h.CallHistory)
			calls.GET("/:id", h.GetCall)
		}

		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.POST("/wallets/:owner_id/debit", h.AdminDebit)
			admin.POST("/wallets/:owner_id/credit", h.AdminCredit)
			admin.POST("/funding/expire", h.AdminExpireFunding)
		}
	}
}
