package orders

import (
	"log"
	"net/http"
	"time"

	"velora_back_office/internal/cache"
	"velora_back_office/internal/database"
	"velora_back_office/internal/orderstore"
	"velora_back_office/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// GetOrder récupère le détail d'une commande pour la vue admin
func GetOrder(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	order, err := cache.GetOrderFromCache(gocql.UUID(orderUUID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetAllOrders permet à un admin de récupérer toutes les commandes
func GetAllOrders(c *gin.Context) {
	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	// Récupérer toutes les commandes (attention: peut être lourd en production)
	iter := session.Query(`SELECT order_id, user_id, customer_email, payment_method, currency, subtotal, status, created_at, updated_at
		FROM orders`).Iter()

	type OrderRow struct {
		ID            string     `json:"id"`
		UserID        string     `json:"user_id"`
		CustomerEmail string     `json:"customer_email"`
		PaymentMethod string     `json:"payment_method"`
		Currency      string     `json:"currency"`
		Subtotal      float64    `json:"subtotal"`
		Status        string     `json:"status"`
		CreatedAt     time.Time  `json:"created_at"`
		UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	}

	var orders []OrderRow
	var row OrderRow
	var orderID gocql.UUID

	for iter.Scan(&orderID, &row.UserID, &row.CustomerEmail, &row.PaymentMethod, &row.Currency,
		&row.Subtotal, &row.Status, &row.CreatedAt, &row.UpdatedAt) {
		row.ID = orderID.String()
		orders = append(orders, row)
	}

	if err := iter.Close(); err != nil {
		log.Printf("❌ Erreur lecture commandes: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture commandes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// UpdateOrderStatus permet à un admin de faire avancer une commande dans
// son cycle de vie. Les statuts refunded et cancelled passent par le flux
// de remboursement, jamais par ici.
func UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("id")

	var req struct {
		Status         string `json:"status" binding:"required"`
		TrackingNumber string `json:"tracking_number"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	validStatuses := map[string]bool{
		"pending":   true,
		"paid":      true,
		"shipped":   true,
		"delivered": true,
	}

	if !validStatuses[req.Status] {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Statut invalide (remboursements et annulations via le flux de remboursement)",
			"valid_statuses": []string{"pending", "paid", "shipped", "delivered"},
		})
		return
	}

	orderUUID, err := uuid.Parse(orderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	// Vérifier que la commande existe
	var currentStatus string
	err = session.Query("SELECT status FROM orders WHERE order_id = ?", gocql.UUID(orderUUID)).Scan(&currentStatus)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		return
	}

	now := time.Now()

	if stmt := database.GetPreparedUpdateOrderStatus(); stmt != nil {
		err = stmt.Bind(req.Status, now, gocql.UUID(orderUUID)).Exec()
	} else {
		err = session.Query("UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ?",
			req.Status, now, gocql.UUID(orderUUID)).Exec()
	}
	if err != nil {
		log.Printf("❌ Erreur mise à jour orders: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur mise à jour commande"})
		return
	}

	orderstore.AppendEvent(gocql.UUID(orderUUID), "status_changed",
		"Statut passé de "+currentStatus+" à "+req.Status, c.GetString("user_id"))
	cache.InvalidateOrderCache(gocql.UUID(orderUUID))
	utils.LogAction(c, "update_order_status", "order", orderID, currentStatus, req.Status)

	log.Printf("✅ Commande %s mise à jour: %s", orderID, req.Status)

	response := gin.H{
		"success":    true,
		"order_id":   orderID,
		"status":     req.Status,
		"updated_at": now,
	}

	if req.TrackingNumber != "" {
		response["tracking_number"] = req.TrackingNumber
	}

	c.JSON(http.StatusOK, response)
}

// GetOrderStats retourne des statistiques sur les commandes
func GetOrderStats(c *gin.Context) {
	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	stats := make(map[string]int)
	var totalRevenue float64
	var totalOrders int

	iter := session.Query("SELECT status, subtotal FROM orders").Iter()

	var status string
	var subtotal float64

	for iter.Scan(&status, &subtotal) {
		stats[status]++
		totalRevenue += subtotal
		totalOrders++
	}

	if err := iter.Close(); err != nil {
		log.Printf("❌ Erreur lecture stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture statistiques"})
		return
	}

	// Montant total remboursé, toutes classifications confondues
	var totalRefunded float64
	var amount float64
	refundIter := session.Query("SELECT amount FROM refunds").Iter()
	for refundIter.Scan(&amount) {
		totalRefunded += amount
	}
	if err := refundIter.Close(); err != nil {
		log.Printf("⚠️ Erreur lecture remboursements pour stats: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"total_orders":   totalOrders,
		"total_revenue":  totalRevenue,
		"total_refunded": totalRefunded,
		"by_status":      stats,
	})
}
