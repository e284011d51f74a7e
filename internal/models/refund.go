package models

import (
	"time"

	"github.com/gocql/gocql"
)

// Refund est l'enregistrement persistant d'un remboursement traité
type Refund struct {
	ID             gocql.UUID    `json:"id" db:"refund_id"`
	OrderID        gocql.UUID    `json:"order_id" db:"order_id"`
	Type           string        `json:"type" db:"type"` // full, partial, damaged, fraud
	Amount         float64       `json:"amount" db:"amount"`
	Currency       string        `json:"currency" db:"currency"`
	Note           string        `json:"note,omitempty" db:"note"`
	RestockItems   []RestockItem `json:"restock_items,omitempty"`
	OrderStatus    string        `json:"order_status" db:"order_status"` // refunded ou cancelled
	ProcessedBy    string        `json:"processed_by" db:"processed_by"`
	StripeRefundID string        `json:"stripe_refund_id,omitempty" db:"stripe_refund_id"`
	IdempotencyKey string        `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// RestockItem désigne les unités d'une ligne de commande à remettre en stock
type RestockItem struct {
	ItemIndex int `json:"itemIndex"`
	Quantity  int `json:"quantity"`
}

// RefundPatch est le contrat PATCH accepté sur une commande :
// { "status": "refunded"|"cancelled", "refund": { "type", "amount", "note", "items" } }
type RefundPatch struct {
	Status string     `json:"status" binding:"required"`
	Refund RefundBody `json:"refund" binding:"required"`
}

type RefundBody struct {
	Type   string        `json:"type" binding:"required"`
	Amount float64       `json:"amount"`
	Note   *string       `json:"note"`
	Items  []RestockItem `json:"items,omitempty"`
}
