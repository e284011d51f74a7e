package main

import (
	"context"
	"log"
	"os"

	"velora_back_office/internal/config"
	"velora_back_office/internal/database"
	"velora_back_office/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
)

func main() {
	config.Load()

	secret := os.Getenv("STRIPE_SECRET_KEY")
	stripe.Key = secret
	if stripe.Key == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	log.Println("✅ Stripe initialisé")

	database.ConnectDatabases()
	defer database.CloseScylla()

	// ✅ Initialiser les prepared statements pour améliorer les performances
	database.InitPreparedStatements()

	// ✅ Pré-chauffer le cache Redis
	warmupRedisCache()

	r := gin.Default()
	routes.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Back-office Velora lancé sur le port", port)
	r.Run(":" + port)
}

// warmupRedisCache pré-chauffe le cache Redis pour éviter la latence du premier appel
func warmupRedisCache() {
	ctx := context.Background()
	if err := database.Redis.Ping(ctx).Err(); err == nil {
		log.Println("✅ Cache Redis pré-chauffé")
	}
}
