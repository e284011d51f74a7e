package refunds

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"velora_back_office/internal/models"
	"velora_back_office/internal/orderstore"
	"velora_back_office/internal/refund"
	"velora_back_office/internal/services"
	"velora_back_office/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

var store = orderstore.New()

// refundInput est la saisie de la modale de remboursement du back-office
type refundInput struct {
	Mode           string      `json:"mode" binding:"required"`
	EnteredAmount  string      `json:"entered_amount"`
	ItemQuantities map[int]int `json:"item_quantities"`
	Note           string      `json:"note"`
	Status         string      `json:"status"`
}

// newSessionFromInput reconstruit la session côté serveur : le mode est
// appliqué d'abord, puis chaque saisie passe par les mêmes points de
// mutation bornés que les steppers du back-office
func newSessionFromInput(c *gin.Context, input refundInput) (*refund.Session, bool) {
	orderID := c.Param("id")

	orderUUID, err := uuid.Parse(orderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return nil, false
	}

	mode, err := refund.ParseMode(input.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}

	snapshot, err := store.Snapshot(c.Request.Context(), gocql.UUID(orderUUID))
	if err != nil {
		if errors.Is(err, orderstore.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}

	session := refund.NewSession(*snapshot)
	session.SetMode(mode)
	session.SetEnteredAmount(input.EnteredAmount)
	for index, qty := range input.ItemQuantities {
		session.SetItemQuantity(index, qty)
	}
	session.SetNote(input.Note)
	if input.Status != "" {
		session.SetTargetStatus(input.Status)
	}

	return session, true
}

// PreviewRefund recalcule les valeurs dérivées affichées pendant la
// saisie. Les échecs de validation sont consultatifs : toujours 200, avec
// un drapeau valid et le message à afficher en ligne.
func PreviewRefund(c *gin.Context) {
	var input refundInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	session, ok := newSessionFromInput(c, input)
	if !ok {
		return
	}

	derived := session.Preview()
	response := gin.H{
		"amount":          derived.Amount,
		"percent":         derived.Percent,
		"amount_retained": derived.AmountRetained,
		"valid":           true,
	}

	if err := session.Validate(); err != nil {
		response["valid"] = false
		if ve, ok := refund.AsValidation(err); ok {
			response["error"] = gin.H{"code": ve.Code, "message": ve.Message}
		} else {
			response["error"] = gin.H{"message": err.Error()}
		}
	}

	c.JSON(http.StatusOK, response)
}

// SubmitRefund est la soumission autoritaire : validation, Stripe,
// persistance, remise en stock, puis effets de bord asynchrones
func SubmitRefund(c *gin.Context) {
	var input refundInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	session, ok := newSessionFromInput(c, input)
	if !ok {
		return
	}

	ctx := context.WithValue(c.Request.Context(), orderstore.ActorKey, c.GetString("user_id"))
	order, err := session.Submit(ctx, store)
	if err != nil {
		respondSubmitError(c, err)
		utils.LogFailedAction(c, "refund_order", "order", c.Param("id"), err.Error())
		return
	}

	utils.LogAction(c, "refund_order", "order", order.ID.String(), nil, input)
	go runSideEffects(order.ID, order.CustomerEmail)

	log.Printf("✅ Remboursement soumis pour la commande %s par %s", order.ID, c.GetString("user_id"))
	c.JSON(http.StatusOK, gin.H{
		"message": "Remboursement traité avec succès",
		"order":   order,
	})
}

// PatchOrder accepte le contrat brut du magasin de commandes :
// { "status": ..., "refund": { "type", "amount", "note", "items" } }.
// La charge est revalidée contre le snapshot avant application, le
// back-office n'est jamais cru sur parole.
func PatchOrder(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	var patch models.RefundPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	if patch.Status != models.StatusRefunded && patch.Status != models.StatusCancelled {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Statut cible invalide (refunded ou cancelled)"})
		return
	}

	backendType := refund.BackendType(patch.Refund.Type)
	switch backendType {
	case refund.BackendFull, refund.BackendPartial, refund.BackendDamaged, refund.BackendFraud:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type de remboursement invalide"})
		return
	}

	snapshot, err := store.Snapshot(c.Request.Context(), gocql.UUID(orderUUID))
	if err != nil {
		if errors.Is(err, orderstore.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Commande introuvable"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	if req, valid := revalidatePatch(c, patch, backendType, snapshot); valid {
		ctx := context.WithValue(c.Request.Context(), orderstore.ActorKey, c.GetString("user_id"))
		order, err := store.ApplyRefund(ctx, gocql.UUID(orderUUID), req)
		if err != nil {
			respondSubmitError(c, err)
			utils.LogFailedAction(c, "patch_order", "order", c.Param("id"), err.Error())
			return
		}

		utils.LogAction(c, "patch_order", "order", order.ID.String(), nil, patch)
		go runSideEffects(order.ID, order.CustomerEmail)

		c.JSON(http.StatusOK, order)
	}
}

// revalidatePatch rejoue les contrôles du moteur sur une charge pré-calculée
func revalidatePatch(c *gin.Context, patch models.RefundPatch, backendType refund.BackendType, snapshot *models.OrderSnapshot) (*refund.Request, bool) {
	amount := patch.Refund.Amount

	if backendType == refund.BackendPartial {
		if amount <= 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Le montant du remboursement doit être supérieur à 0"})
			return nil, false
		}
		if amount > snapshot.Subtotal {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":    "Le montant dépasse le total de la commande",
				"subtotal": snapshot.Subtotal,
			})
			return nil, false
		}
	} else if amount != snapshot.Subtotal {
		// full, damaged et fraud couvrent le sous-total entier par définition
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    "Montant incohérent pour un remboursement intégral",
			"subtotal": snapshot.Subtotal,
		})
		return nil, false
	}

	var restock []models.RestockItem
	for _, item := range patch.Refund.Items {
		if item.ItemIndex < 0 || item.ItemIndex >= len(snapshot.Items) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Index d'article hors limites"})
			return nil, false
		}
		if item.Quantity > snapshot.Items[item.ItemIndex].Quantity {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Quantité remboursée supérieure à la quantité commandée"})
			return nil, false
		}
		if item.Quantity > 0 {
			restock = append(restock, item)
		}
	}

	note := ""
	if patch.Refund.Note != nil {
		note = strings.TrimSpace(*patch.Refund.Note)
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	return &refund.Request{
		Type:           backendType,
		Amount:         amount,
		Note:           note,
		RestockItems:   restock,
		TargetStatus:   patch.Status,
		IdempotencyKey: idempotencyKey,
	}, true
}

// respondSubmitError traduit les échecs de soumission en statuts HTTP.
// Les messages du magasin sont remontés tels quels à l'opérateur.
func respondSubmitError(c *gin.Context, err error) {
	if ve, ok := refund.AsValidation(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": ve.Message, "code": ve.Code})
		return
	}
	switch {
	case errors.Is(err, orderstore.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orderstore.ErrAlreadyRefunded), errors.Is(err, orderstore.ErrSubmitInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// runSideEffects déroule les suites d'un remboursement traité : avoir PDF
// archivé dans MinIO, e-mail client, indexation pour le reporting. Aucune
// de ces étapes ne remet en cause le remboursement déjà persisté.
func runSideEffects(orderID gocql.UUID, customerEmail string) {
	processed, err := store.RefundsForOrder(context.Background(), orderID)
	if err != nil || len(processed) == 0 {
		log.Printf("⚠️ Effets de bord ignorés, remboursement introuvable pour %s: %v", orderID, err)
		return
	}

	latest := processed[0]
	for _, r := range processed[1:] {
		if r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}

	services.IndexRefund(latest)

	var pdf []byte
	pdf, err = utils.GenerateCreditNotePDF(latest.ID.String(), orderID.String(), latest.Amount)
	if err != nil {
		log.Printf("⚠️ Erreur génération avoir PDF: %v", err)
		pdf = nil
	} else if _, err := services.UploadCreditNote(latest.ID.String(), pdf); err != nil {
		log.Printf("⚠️ Erreur archivage avoir: %v", err)
	}

	if customerEmail != "" {
		if err := utils.SendRefundEmail(customerEmail, latest, pdf); err != nil {
			log.Printf("⚠️ Erreur envoi e-mail remboursement: %v", err)
		}
	}
}

// GetOrderRefunds récupère les remboursements d'une commande
func GetOrderRefunds(c *gin.Context) {
	orderUUID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID commande invalide"})
		return
	}

	refunds, err := store.RefundsForOrder(c.Request.Context(), gocql.UUID(orderUUID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture remboursements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refunds": refunds,
		"count":   len(refunds),
	})
}

// GetAllRefunds récupère tous les remboursements traités (admin)
func GetAllRefunds(c *gin.Context) {
	refunds, err := store.AllRefunds(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur lecture remboursements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"refunds": refunds,
		"count":   len(refunds),
	})
}

// SearchRefunds recherche dans l'index de reporting
func SearchRefunds(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètre q requis"})
		return
	}

	results, err := services.SearchRefunds(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur recherche remboursements"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"count":   len(results),
	})
}

// GetCreditNoteURL génère une URL signée de téléchargement d'un avoir
func GetCreditNoteURL(c *gin.Context) {
	refundID := c.Param("refundId")
	if _, err := uuid.Parse(refundID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ID remboursement invalide"})
		return
	}

	signedURL, err := services.CreditNoteDownloadURL("avoirs/" + refundID + ".pdf")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur génération URL de téléchargement"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": signedURL})
}
