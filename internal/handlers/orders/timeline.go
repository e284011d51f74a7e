package orders

import (
	"log"
	"net/http"
	"time"

	"velora_back_office/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// GetOrderTimeline retourne l'historique des événements d'une commande
// (changements de statut, remboursements), du plus récent au plus ancien.
func GetOrderTimeline(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	iter := session.Query(`SELECT event_id, type, label, actor, created_at
		FROM order_events WHERE order_id = ?`, gocql.UUID(orderUUID)).Iter()

	type eventRow struct {
		ID        string    `json:"id"`
		Type      string    `json:"type"`
		Label     string    `json:"label"`
		Actor     string    `json:"actor"`
		CreatedAt time.Time `json:"created_at"`
	}

	var events []eventRow
	var row eventRow
	var eventID gocql.UUID

	for iter.Scan(&eventID, &row.Type, &row.Label, &row.Actor, &row.CreatedAt) {
		row.ID = eventID.String()
		events = append(events, row)
	}

	if err := iter.Close(); err != nil {
		log.Printf("❌ Erreur lecture timeline %s: %v", orderUUID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture historique"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id": orderUUID.String(),
		"events":   events,
		"count":    len(events),
	})
}
