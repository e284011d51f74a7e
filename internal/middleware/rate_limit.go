package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"velora_back_office/internal/database"

	"github.com/gin-gonic/gin"
)

const (
	// Limites par endpoint
	RefundMaxSubmits = 10 // soumissions de remboursement par opérateur
	APIMaxRequests   = 100

	// Durées de cooldown
	RefundCooldown = 5 * time.Minute
	APICooldown    = 1 * time.Minute
)

// RefundRateLimit borne le nombre de soumissions de remboursement par
// opérateur. Le verrou d'idempotence du magasin reste la vraie protection,
// ceci coupe court aux rafales accidentelles d'un back-office emballé.
func RefundRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.Next()
			return
		}

		ctx := context.Background()
		key := "refund_submits:" + userID

		attempts, _ := database.Redis.Get(ctx, key).Int()
		if attempts >= RefundMaxSubmits {
			ttl := database.Redis.TTL(ctx, key).Val()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       fmt.Sprintf("Trop de remboursements soumis. Réessayez dans %d minutes", int(ttl.Minutes())+1),
				"retry_after": int(ttl.Seconds()),
			})
			c.Abort()
			return
		}

		database.Redis.Incr(ctx, key)
		database.Redis.Expire(ctx, key, RefundCooldown)

		c.Next()
	}
}

// GeneralAPIRateLimit limite générale par IP pour les endpoints admin
func GeneralAPIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		key := "api_requests:" + c.ClientIP()

		requests, _ := database.Redis.Get(ctx, key).Int()
		if requests >= APIMaxRequests {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Trop de requêtes. Ralentissez.",
				"retry_after": int(APICooldown.Seconds()),
			})
			c.Abort()
			return
		}

		database.Redis.Incr(ctx, key)
		if requests == 0 {
			database.Redis.Expire(ctx, key, APICooldown)
		}

		c.Next()
	}
}
