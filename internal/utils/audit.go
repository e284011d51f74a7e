package utils

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"

	"velora_back_office/internal/database"
	"velora_back_office/internal/models"
)

// LogAction enregistre une action dans les logs d'audit. La lecture du
// contexte gin se fait avant de rendre la main : gin recycle le contexte
// dès que le handler retourne, seule l'écriture est asynchrone.
func LogAction(c *gin.Context, action, resource string, resourceID string, oldValue, newValue interface{}) {
	entry := newAuditEntry(c, action, resource, resourceID, oldValue, newValue, true, "")
	go func() {
		if err := persistAuditEntry(entry); err != nil {
			log.Printf("❌ Erreur enregistrement log audit: %v", err)
		}
	}()
}

// LogFailedAction enregistre une action échouée dans les logs d'audit
func LogFailedAction(c *gin.Context, action, resource, resourceID, errorMsg string) {
	entry := newAuditEntry(c, action, resource, resourceID, nil, nil, false, errorMsg)
	go func() {
		if err := persistAuditEntry(entry); err != nil {
			log.Printf("❌ Erreur enregistrement log audit: %v", err)
		}
	}()
}

// newAuditEntry capture l'identité de l'opérateur et les métadonnées de la
// requête pendant que le contexte gin est encore valide
func newAuditEntry(c *gin.Context, action, resource, resourceID string, oldValue, newValue interface{}, success bool, errorMsg string) models.AuditLog {
	userID, _ := c.Get("user_id")
	userEmail, _ := c.Get("email")

	var oldValueStr, newValueStr string
	if oldValue != nil {
		if oldBytes, err := json.Marshal(oldValue); err == nil {
			oldValueStr = string(oldBytes)
		}
	}
	if newValue != nil {
		if newBytes, err := json.Marshal(newValue); err == nil {
			newValueStr = string(newBytes)
		}
	}

	return models.AuditLog{
		ID:         gocql.TimeUUID(),
		UserID:     getStringValue(userID),
		UserEmail:  getStringValue(userEmail),
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		OldValue:   oldValueStr,
		NewValue:   newValueStr,
		IPAddress:  c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
		Success:    success,
		ErrorMsg:   errorMsg,
		Timestamp:  time.Now(),
	}
}

func persistAuditEntry(entry models.AuditLog) error {
	session, err := database.GetOrdersSession()
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_logs (
			id, user_id, user_email, action, resource, resource_id,
			old_value, new_value, ip_address, user_agent, success,
			error_msg, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	return session.Query(query,
		entry.ID, entry.UserID, entry.UserEmail, entry.Action,
		entry.Resource, entry.ResourceID, entry.OldValue, entry.NewValue,
		entry.IPAddress, entry.UserAgent, entry.Success,
		entry.ErrorMsg, entry.Timestamp,
	).Exec()
}

func getStringValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
