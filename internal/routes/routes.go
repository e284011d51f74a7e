package routes

import (
	"os"
	"strings"
	"time"

	"velora_back_office/internal/handlers/admin"
	"velora_back_office/internal/handlers/orders"
	"velora_back_office/internal/handlers/refunds"
	"velora_back_office/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine) {
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173"
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(allowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Tout le back-office est réservé aux admins authentifiés
	api := r.Group("/api/admin")
	api.Use(middleware.GeneralAPIRateLimit())
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RequireAdmin)
	{
		// Commandes
		api.GET("/orders", orders.GetAllOrders)
		api.GET("/orders/stats", orders.GetOrderStats)
		api.GET("/orders/:id", orders.GetOrder)
		api.GET("/orders/:id/timeline", orders.GetOrderTimeline)
		api.PUT("/orders/:id/status", orders.UpdateOrderStatus)

		// Remboursements
		api.POST("/orders/:id/refund/preview", refunds.PreviewRefund)
		api.POST("/orders/:id/refund", middleware.RefundRateLimit(), refunds.SubmitRefund)
		api.PATCH("/orders/:id", middleware.RefundRateLimit(), refunds.PatchOrder)
		api.GET("/orders/:id/refunds", refunds.GetOrderRefunds)
		api.GET("/refunds", refunds.GetAllRefunds)
		api.GET("/refunds/search", refunds.SearchRefunds)
		api.GET("/refunds/:refundId/credit-note", refunds.GetCreditNoteURL)

		// Audit
		api.GET("/audit-logs", admin.GetAuditLogs)
		api.GET("/audit-logs/stats", admin.GetAuditStats)
		api.GET("/audit-logs/:resource/:resource_id", admin.GetAuditLogsByResource)
	}
}
