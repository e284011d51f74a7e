package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestNewAuditEntryCapturesContextSynchronously(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/api/admin/orders/abc/refund", nil)
	c.Request.Header.Set("User-Agent", "backoffice/1.0")
	c.Set("user_id", "op-42")
	c.Set("email", "op@velora.shop")

	entry := newAuditEntry(c, "refund_order", "order", "abc",
		nil, map[string]string{"mode": "full"}, true, "")

	// toutes les valeurs issues du contexte doivent déjà être copiées
	// dans l'entrée : l'écriture asynchrone ne relit jamais le contexte
	assert.Equal(t, "op-42", entry.UserID)
	assert.Equal(t, "op@velora.shop", entry.UserEmail)
	assert.Equal(t, "refund_order", entry.Action)
	assert.Equal(t, "order", entry.Resource)
	assert.Equal(t, "abc", entry.ResourceID)
	assert.Equal(t, "backoffice/1.0", entry.UserAgent)
	assert.JSONEq(t, `{"mode":"full"}`, entry.NewValue)
	assert.True(t, entry.Success)
	assert.False(t, entry.Timestamp.IsZero())
}

func TestNewAuditEntryFailedAction(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("PATCH", "/api/admin/orders/abc", nil)
	c.Set("user_id", "op-42")

	entry := newAuditEntry(c, "patch_order", "order", "abc",
		nil, nil, false, "commande introuvable")

	assert.False(t, entry.Success)
	assert.Equal(t, "commande introuvable", entry.ErrorMsg)
	assert.Empty(t, entry.OldValue)
	assert.Empty(t, entry.NewValue)
}
