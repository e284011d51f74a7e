package database

import (
	"log"
	"sync"

	"github.com/gocql/gocql"
)

var (
	// Prepared statements pour les requêtes fréquentes du back-office
	stmtGetOrderByID      *gocql.Query
	stmtUpdateOrderStatus *gocql.Query
	stmtInsertRefund      *gocql.Query
	stmtInsertOrderEvent  *gocql.Query

	preparedOnce sync.Once
)

// InitPreparedStatements initialise les prepared statements
func InitPreparedStatements() {
	preparedOnce.Do(func() {
		session, err := GetOrdersSession()
		if err != nil {
			log.Printf("⚠️ Impossible d'initialiser les prepared statements: %v", err)
			return
		}

		stmtGetOrderByID = session.Query(`SELECT user_id, customer_email, payment_intent_id, payment_method, currency, subtotal, status, created_at, updated_at
			FROM orders WHERE order_id = ?`)

		stmtUpdateOrderStatus = session.Query("UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ?")

		stmtInsertRefund = session.Query(`INSERT INTO refunds (refund_id, order_id, type, amount, currency, note, restock_items, order_status, processed_by, stripe_refund_id, idempotency_key, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

		stmtInsertOrderEvent = session.Query(`INSERT INTO order_events (event_id, order_id, type, label, actor, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`)

		log.Println("✅ Prepared statements initialisés")
	})
}

func GetPreparedGetOrderByID() *gocql.Query {
	return stmtGetOrderByID
}

func GetPreparedUpdateOrderStatus() *gocql.Query {
	return stmtUpdateOrderStatus
}

func GetPreparedInsertRefund() *gocql.Query {
	return stmtInsertRefund
}

func GetPreparedInsertOrderEvent() *gocql.Query {
	return stmtInsertOrderEvent
}
