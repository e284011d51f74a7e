package admin

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"velora_back_office/internal/database"
	"velora_back_office/internal/models"
)

// GetAuditLogs récupère les logs d'audit avec filtres
func GetAuditLogs(c *gin.Context) {
	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	// Paramètres de filtrage
	userID := c.Query("user_id")
	action := c.Query("action")
	resource := c.Query("resource")
	limitStr := c.DefaultQuery("limit", "100")

	limit, _ := strconv.Atoi(limitStr)
	if limit > 500 {
		limit = 500
	}

	baseQuery := `SELECT id, user_id, user_email, action, resource, resource_id,
				  old_value, new_value, ip_address, user_agent, success,
				  error_msg, timestamp FROM audit_logs`

	conditions := []string{}
	var args []interface{}

	if userID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, userID)
	}

	if action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, action)
	}

	if resource != "" {
		conditions = append(conditions, "resource = ?")
		args = append(args, resource)
	}

	query := baseQuery
	if len(conditions) > 0 {
		query += " WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			query += " AND " + conditions[i]
		}
		query += " ALLOW FILTERING"
	}

	query += " LIMIT ?"
	args = append(args, limit)

	iter := session.Query(query, args...).Iter()

	var logs []models.AuditLog
	var auditLog models.AuditLog

	for iter.Scan(&auditLog.ID, &auditLog.UserID, &auditLog.UserEmail,
		&auditLog.Action, &auditLog.Resource, &auditLog.ResourceID,
		&auditLog.OldValue, &auditLog.NewValue, &auditLog.IPAddress,
		&auditLog.UserAgent, &auditLog.Success, &auditLog.ErrorMsg,
		&auditLog.Timestamp) {
		logs = append(logs, auditLog)
	}

	if err := iter.Close(); err != nil {
		log.Printf("❌ Erreur récupération logs audit: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": len(logs),
		"filters": gin.H{
			"user_id":  userID,
			"action":   action,
			"resource": resource,
			"limit":    limit,
		},
	})
}

// GetAuditLogsByResource récupère les logs pour une ressource spécifique,
// typiquement l'historique des actions d'une commande
func GetAuditLogsByResource(c *gin.Context) {
	resource := c.Param("resource")
	resourceID := c.Param("resource_id")
	limitStr := c.DefaultQuery("limit", "50")

	limit, _ := strconv.Atoi(limitStr)
	if limit > 200 {
		limit = 200
	}

	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	query := `SELECT id, user_id, user_email, action, resource, resource_id,
			  old_value, new_value, ip_address, user_agent, success,
			  error_msg, timestamp FROM audit_logs
			  WHERE resource = ? AND resource_id = ? LIMIT ? ALLOW FILTERING`

	iter := session.Query(query, resource, resourceID, limit).Iter()

	var logs []models.AuditLog
	var auditLog models.AuditLog

	for iter.Scan(&auditLog.ID, &auditLog.UserID, &auditLog.UserEmail,
		&auditLog.Action, &auditLog.Resource, &auditLog.ResourceID,
		&auditLog.OldValue, &auditLog.NewValue, &auditLog.IPAddress,
		&auditLog.UserAgent, &auditLog.Success, &auditLog.ErrorMsg,
		&auditLog.Timestamp) {
		logs = append(logs, auditLog)
	}

	if err := iter.Close(); err != nil {
		log.Printf("❌ Erreur récupération logs audit: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resource":    resource,
		"resource_id": resourceID,
		"logs":        logs,
		"total":       len(logs),
	})
}

// GetAuditStats récupère les statistiques des logs d'audit.
// L'agrégation se fait côté Go, Cassandra ne sait pas grouper.
func GetAuditStats(c *gin.Context) {
	session, err := database.GetOrdersSession()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur connexion base de données"})
		return
	}

	iter := session.Query(`SELECT action, user_email, success, timestamp FROM audit_logs`).Iter()

	yesterday := time.Now().Add(-24 * time.Hour)

	var totalLogs, successfulActions, failedActions, recentActions int
	actionCounts := make(map[string]int)
	userCounts := make(map[string]int)

	var action, userEmail string
	var success bool
	var ts time.Time

	for iter.Scan(&action, &userEmail, &success, &ts) {
		totalLogs++
		if success {
			successfulActions++
		} else {
			failedActions++
		}
		if ts.After(yesterday) {
			recentActions++
		}
		actionCounts[action]++
		if userEmail != "" {
			userCounts[userEmail]++
		}
	}

	if err := iter.Close(); err != nil {
		log.Printf("❌ Erreur lecture stats audit: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	successRate := 0.0
	if totalLogs > 0 {
		successRate = float64(successfulActions) / float64(totalLogs) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"total_logs":         totalLogs,
		"successful_actions": successfulActions,
		"failed_actions":     failedActions,
		"recent_actions":     recentActions,
		"success_rate":       successRate,
		"by_action":          actionCounts,
		"by_user":            userCounts,
	})
}
