package models

import (
	"fmt"
	"time"

	"github.com/gocql/gocql"
)

const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusShipped   = "shipped"
	StatusDelivered = "delivered"
	StatusRefunded  = "refunded"
	StatusCancelled = "cancelled"
)

type Order struct {
	ID              gocql.UUID  `json:"id"`
	UserID          string      `json:"user_id"`
	CustomerEmail   string      `json:"customer_email,omitempty"`
	PaymentIntentID string      `json:"payment_intent_id,omitempty"`
	PaymentMethod   string      `json:"payment_method"`
	Currency        string      `json:"currency"`
	Items           []OrderItem `json:"items"`
	Subtotal        float64     `json:"subtotal"`
	Status          string      `json:"status"` // pending, paid, shipped, delivered, refunded, cancelled
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       *time.Time  `json:"updated_at,omitempty"`
}

type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"` // prix effectivement facturé par unité, remises déduites
	Quantity  int     `json:"quantity"`
}

// OrderEvent est une entrée de la timeline de suivi d'une commande
type OrderEvent struct {
	ID        gocql.UUID `json:"id"`
	OrderID   gocql.UUID `json:"order_id"`
	Type      string     `json:"type"` // status_changed, refund_processed, ...
	Label     string     `json:"label"`
	Actor     string     `json:"actor,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// OrderSnapshot est la vue figée d'une commande pendant une session de
// remboursement. Lecture seule : le moteur de remboursement la reçoit déjà
// chargée et ne refait aucun accès base.
type OrderSnapshot struct {
	OrderID       gocql.UUID     `json:"order_id"`
	Subtotal      float64        `json:"subtotal"`
	Currency      string         `json:"currency"`
	Items         []SnapshotItem `json:"items"`
	PaymentMethod string         `json:"payment_method"`
	Status        string         `json:"status"`
}

type SnapshotItem struct {
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// NewOrderSnapshot construit un snapshot validé depuis une commande chargée.
// Échec immédiat si la commande est incomplète plutôt qu'un affichage vide
// côté back-office.
func NewOrderSnapshot(order Order) (*OrderSnapshot, error) {
	if order.Subtotal < 0 {
		return nil, fmt.Errorf("snapshot invalide: sous-total négatif (%.2f)", order.Subtotal)
	}
	if order.Currency == "" {
		return nil, fmt.Errorf("snapshot invalide: devise manquante pour la commande %s", order.ID)
	}
	if len(order.Items) == 0 {
		return nil, fmt.Errorf("snapshot invalide: aucune ligne d'article pour la commande %s", order.ID)
	}

	items := make([]SnapshotItem, 0, len(order.Items))
	for i, it := range order.Items {
		if it.UnitPrice < 0 {
			return nil, fmt.Errorf("snapshot invalide: prix unitaire négatif ligne %d", i)
		}
		if it.Quantity < 1 {
			return nil, fmt.Errorf("snapshot invalide: quantité invalide ligne %d", i)
		}
		items = append(items, SnapshotItem{UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}

	return &OrderSnapshot{
		OrderID:       order.ID,
		Subtotal:      order.Subtotal,
		Currency:      order.Currency,
		Items:         items,
		PaymentMethod: order.PaymentMethod,
		Status:        order.Status,
	}, nil
}
