package cache

import (
	"context"
	"encoding/json"
	"time"

	"velora_back_office/internal/database"
	"velora_back_office/internal/models"

	"github.com/gocql/gocql"
)

const (
	OrderCacheTTL = 2 * time.Minute
)

// GetOrderFromCache récupère une commande depuis Redis ou ScyllaDB
func GetOrderFromCache(orderID gocql.UUID) (*models.Order, error) {
	ctx := context.Background()
	key := "order:" + orderID.String()

	// 1. Essayer le cache Redis
	data, err := database.Redis.Get(ctx, key).Result()
	if err == nil {
		var order models.Order
		if json.Unmarshal([]byte(data), &order) == nil {
			return &order, nil
		}
	}

	// 2. Récupérer de ScyllaDB
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	var (
		userID, customerEmail, paymentIntentID, paymentMethod, currency, status string
		subtotal                                                                float64
		createdAt                                                               time.Time
		updatedAt                                                               *time.Time
	)

	if stmt := database.GetPreparedGetOrderByID(); stmt != nil {
		err = stmt.Bind(orderID).Scan(
			&userID, &customerEmail, &paymentIntentID, &paymentMethod, &currency, &subtotal, &status, &createdAt, &updatedAt)
	} else {
		err = session.Query(`SELECT user_id, customer_email, payment_intent_id, payment_method, currency, subtotal, status, created_at, updated_at
			FROM orders WHERE order_id = ?`, orderID).Scan(
			&userID, &customerEmail, &paymentIntentID, &paymentMethod, &currency, &subtotal, &status, &createdAt, &updatedAt)
	}
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              orderID,
		UserID:          userID,
		CustomerEmail:   customerEmail,
		PaymentIntentID: paymentIntentID,
		PaymentMethod:   paymentMethod,
		Currency:        currency,
		Subtotal:        subtotal,
		Status:          status,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}

	// Lignes d'articles (table dédiée, ordonnée par index de ligne)
	iter := session.Query(`SELECT product_id, name, unit_price, quantity
		FROM order_items WHERE order_id = ?`, orderID).Iter()

	var item models.OrderItem
	for iter.Scan(&item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity) {
		order.Items = append(order.Items, item)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	// 3. Mettre en cache
	jsonData, _ := json.Marshal(order)
	database.Redis.Set(ctx, key, jsonData, OrderCacheTTL)

	return order, nil
}

// InvalidateOrderCache invalide le cache d'une commande après un
// remboursement ou un changement de statut
func InvalidateOrderCache(orderID gocql.UUID) {
	ctx := context.Background()
	database.Redis.Del(ctx, "order:"+orderID.String())
}
