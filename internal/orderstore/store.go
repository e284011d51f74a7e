package orderstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"velora_back_office/internal/cache"
	"velora_back_office/internal/database"
	"velora_back_office/internal/models"
	"velora_back_office/internal/refund"

	"github.com/gocql/gocql"
	"github.com/stripe/stripe-go/v83"
	striperefund "github.com/stripe/stripe-go/v83/refund"
)

const submitLockTTL = 30 * time.Second

// ActorKey transporte l'identité de l'opérateur dans le contexte de la
// requête, plutôt qu'un état global mutable côté client
type contextKey string

const ActorKey contextKey = "actor"

var (
	ErrOrderNotFound    = errors.New("commande introuvable")
	ErrAlreadyRefunded  = errors.New("cette commande a déjà été remboursée ou annulée")
	ErrSubmitInProgress = errors.New("un remboursement est déjà en cours de traitement pour cette commande")
)

// ScyllaStore est le magasin de commandes autoritaire : ScyllaDB pour la
// persistance, Redis pour le verrou de soumission, Stripe pour le mouvement
// d'argent. Il implémente refund.Store.
type ScyllaStore struct{}

func New() *ScyllaStore {
	return &ScyllaStore{}
}

// Snapshot charge la vue figée d'une commande pour une session de
// remboursement. Échec immédiat si la commande est incomplète.
func (s *ScyllaStore) Snapshot(ctx context.Context, orderID gocql.UUID) (*models.OrderSnapshot, error) {
	order, err := cache.GetOrderFromCache(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return models.NewOrderSnapshot(*order)
}

// ApplyRefund applique un remboursement validé : verrou d'idempotence,
// contrôle d'éligibilité, remboursement Stripe, persistance, remise en
// stock, événement de timeline. Le serveur reste l'arbitre final du
// double remboursement, quel que soit l'état du back-office.
func (s *ScyllaStore) ApplyRefund(ctx context.Context, orderID gocql.UUID, req *refund.Request) (*models.Order, error) {
	// Verrou Redis par commande : deux soumissions concurrentes ne se
	// croisent jamais, même depuis deux onglets du back-office
	lockKey := "refund_submit:" + orderID.String()
	locked, err := database.Redis.SetNX(ctx, lockKey, req.IdempotencyKey, submitLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("erreur verrou de soumission: %v", err)
	}
	if !locked {
		return nil, ErrSubmitInProgress
	}
	defer database.Redis.Del(ctx, lockKey)

	order, err := cache.GetOrderFromCache(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, fmt.Errorf("erreur connexion base de données")
	}

	// La clé d'idempotence est consultée avant l'état de la commande :
	// une fois le remboursement persisté, rejouer la même clé doit
	// renvoyer le résultat existant, pas un refus de double remboursement
	keyKnown := false
	if req.IdempotencyKey != "" {
		var existingRefundID gocql.UUID
		err = session.Query("SELECT refund_id FROM refunds WHERE idempotency_key = ? ALLOW FILTERING",
			req.IdempotencyKey).Scan(&existingRefundID)
		keyKnown = err == nil
	}

	replay, err := resubmitOutcome(keyKnown, order.Status)
	if err != nil {
		return nil, err
	}
	if replay {
		log.Printf("♻️ Soumission rejouée pour la commande %s (clé %s)", orderID, req.IdempotencyKey)
		return order, nil
	}

	// Exécuter le remboursement Stripe sur l'intention de paiement d'origine
	var stripeRefundID string
	if order.PaymentIntentID != "" {
		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(order.PaymentIntentID),
			Amount:        stripe.Int64(int64(math.Round(req.Amount * 100))),
			Reason:        stripe.String(stripeReason(req.Type)),
		}
		if req.IdempotencyKey != "" {
			params.SetIdempotencyKey(req.IdempotencyKey)
		}

		stripeRefund, err := striperefund.New(params)
		if err != nil {
			log.Printf("❌ Erreur Stripe refund: %v", err)
			return nil, fmt.Errorf("erreur traitement remboursement Stripe: %v", err)
		}
		stripeRefundID = stripeRefund.ID
	}

	refundID := gocql.TimeUUID()
	now := time.Now()
	actor, _ := ctx.Value(ActorKey).(string)

	err = insertRefund(session, models.Refund{
		ID:             refundID,
		OrderID:        orderID,
		Type:           string(req.Type),
		Amount:         req.Amount,
		Currency:       order.Currency,
		Note:           req.Note,
		RestockItems:   req.RestockItems,
		OrderStatus:    req.TargetStatus,
		ProcessedBy:    actor,
		StripeRefundID: stripeRefundID,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
	})
	if err != nil {
		log.Printf("❌ Erreur insertion remboursement: %v", err)
		return nil, fmt.Errorf("erreur enregistrement remboursement")
	}

	// Remise en stock des unités sélectionnées (mode par articles)
	restockItems(order, req.RestockItems)

	// Statut de la commande + événement de timeline
	if err := updateOrderStatus(session, orderID, req.TargetStatus, now); err != nil {
		log.Printf("⚠️ Erreur mise à jour statut commande: %v", err)
	}
	appendOrderEvent(session, orderID, "refund_processed",
		fmt.Sprintf("Remboursement %s de %.2f %s", req.Type, req.Amount, order.Currency), actor, now)

	cache.InvalidateOrderCache(orderID)

	log.Printf("💰 Remboursement traité: %s pour commande %s (%.2f %s, Stripe: %s)",
		refundID, orderID, req.Amount, order.Currency, stripeRefundID)

	order.Status = req.TargetStatus
	order.UpdatedAt = &now
	return order, nil
}

// resubmitOutcome arbitre une resoumission : une clé d'idempotence déjà
// persistée rejoue le résultat existant, une commande déjà soldée sans
// clé connue est refusée
func resubmitOutcome(keyKnown bool, status string) (bool, error) {
	if keyKnown {
		return true, nil
	}
	if status == models.StatusRefunded || status == models.StatusCancelled {
		return false, ErrAlreadyRefunded
	}
	return false, nil
}

// stripeReason traduit le type comptable en raison Stripe
func stripeReason(t refund.BackendType) string {
	if t == refund.BackendFraud {
		return "fraudulent"
	}
	return "requested_by_customer"
}

func insertRefund(session *gocql.Session, r models.Refund) error {
	restockJSON := ""
	if len(r.RestockItems) > 0 {
		if data, err := json.Marshal(r.RestockItems); err == nil {
			restockJSON = string(data)
		}
	}

	if stmt := database.GetPreparedInsertRefund(); stmt != nil {
		return stmt.Bind(r.ID, r.OrderID, r.Type, r.Amount, r.Currency, r.Note, restockJSON,
			r.OrderStatus, r.ProcessedBy, r.StripeRefundID, r.IdempotencyKey, r.CreatedAt).Exec()
	}
	return session.Query(`INSERT INTO refunds (refund_id, order_id, type, amount, currency, note, restock_items, order_status, processed_by, stripe_refund_id, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OrderID, r.Type, r.Amount, r.Currency, r.Note, restockJSON,
		r.OrderStatus, r.ProcessedBy, r.StripeRefundID, r.IdempotencyKey, r.CreatedAt).Exec()
}

// RefundsForOrder liste les remboursements déjà traités d'une commande
func (s *ScyllaStore) RefundsForOrder(ctx context.Context, orderID gocql.UUID) ([]models.Refund, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT refund_id, order_id, type, amount, currency, note, restock_items, order_status, processed_by, stripe_refund_id, idempotency_key, created_at
		FROM refunds WHERE order_id = ? ALLOW FILTERING`, orderID).Iter()

	return scanRefunds(iter)
}

// AllRefunds liste tous les remboursements traités (vue admin)
func (s *ScyllaStore) AllRefunds(ctx context.Context) ([]models.Refund, error) {
	session, err := database.GetOrdersSession()
	if err != nil {
		return nil, err
	}

	iter := session.Query(`SELECT refund_id, order_id, type, amount, currency, note, restock_items, order_status, processed_by, stripe_refund_id, idempotency_key, created_at
		FROM refunds`).Iter()

	return scanRefunds(iter)
}

func scanRefunds(iter *gocql.Iter) ([]models.Refund, error) {
	var refunds []models.Refund
	var r models.Refund
	var restockJSON string

	for iter.Scan(&r.ID, &r.OrderID, &r.Type, &r.Amount, &r.Currency, &r.Note, &restockJSON,
		&r.OrderStatus, &r.ProcessedBy, &r.StripeRefundID, &r.IdempotencyKey, &r.CreatedAt) {
		r.RestockItems = nil
		if restockJSON != "" {
			json.Unmarshal([]byte(restockJSON), &r.RestockItems)
		}
		refunds = append(refunds, r)
	}

	if err := iter.Close(); err != nil {
		return nil, err
	}
	return refunds, nil
}

func updateOrderStatus(session *gocql.Session, orderID gocql.UUID, status string, now time.Time) error {
	if stmt := database.GetPreparedUpdateOrderStatus(); stmt != nil {
		return stmt.Bind(status, now, orderID).Exec()
	}
	return session.Query("UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ?",
		status, now, orderID).Exec()
}

// restockItems réinjecte les quantités remboursées dans l'inventaire
// (compteurs du keyspace catalogue)
func restockItems(order *models.Order, items []models.RestockItem) {
	if len(items) == 0 {
		return
	}

	catalogSession, err := database.GetCatalogSession()
	if err != nil {
		log.Printf("⚠️ Remise en stock impossible: %v", err)
		return
	}

	for _, item := range items {
		if item.ItemIndex < 0 || item.ItemIndex >= len(order.Items) {
			continue
		}
		productID := order.Items[item.ItemIndex].ProductID
		err := catalogSession.Query("UPDATE inventory_counts SET stock = stock + ? WHERE product_id = ?",
			int64(item.Quantity), productID).Exec()
		if err != nil {
			log.Printf("⚠️ Erreur remise en stock produit %s: %v", productID, err)
			continue
		}
		log.Printf("📦 Remise en stock: %d × produit %s", item.Quantity, productID)
	}
}

// AppendEvent ajoute une entrée de timeline hors du flux de remboursement
// (changements de statut manuels du back-office)
func AppendEvent(orderID gocql.UUID, eventType, label, actor string) {
	session, err := database.GetOrdersSession()
	if err != nil {
		log.Printf("⚠️ Timeline indisponible: %v", err)
		return
	}
	appendOrderEvent(session, orderID, eventType, label, actor, time.Now())
}

// appendOrderEvent ajoute une entrée à la timeline de suivi de la commande
func appendOrderEvent(session *gocql.Session, orderID gocql.UUID, eventType, label, actor string, now time.Time) {
	eventID := gocql.TimeUUID()

	var err error
	if stmt := database.GetPreparedInsertOrderEvent(); stmt != nil {
		err = stmt.Bind(eventID, orderID, eventType, label, actor, now).Exec()
	} else {
		err = session.Query(`INSERT INTO order_events (event_id, order_id, type, label, actor, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`, eventID, orderID, eventType, label, actor, now).Exec()
	}
	if err != nil {
		log.Printf("⚠️ Erreur insertion événement timeline: %v", err)
	}
}
