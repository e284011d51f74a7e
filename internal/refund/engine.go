package refund

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"velora_back_office/internal/models"
)

// Mode est la raison de remboursement choisie par l'opérateur. Cinq raisons
// mutuellement exclusives côté back-office, quatre types côté comptabilité
// (les deux variantes partielles se replient sur "partial").
type Mode string

const (
	ModeFull          Mode = "full"
	ModePartialAmount Mode = "partial_amount"
	ModePartialItems  Mode = "partial_items"
	ModeDamaged       Mode = "damaged"
	ModeFraud         Mode = "fraud"
)

// BackendType est le type de mouvement comptable persisté avec le remboursement
type BackendType string

const (
	BackendFull    BackendType = "full"
	BackendPartial BackendType = "partial"
	BackendDamaged BackendType = "damaged"
	BackendFraud   BackendType = "fraud"
)

// ParseMode valide un mode reçu sur le fil
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeFull, ModePartialAmount, ModePartialItems, ModeDamaged, ModeFraud:
		return Mode(raw), nil
	}
	return "", fmt.Errorf("mode de remboursement invalide: %q", raw)
}

// ToBackendType replie les cinq raisons sur les quatre types comptables
func ToBackendType(m Mode) BackendType {
	switch m {
	case ModePartialAmount, ModePartialItems:
		return BackendPartial
	case ModeDamaged:
		return BackendDamaged
	case ModeFraud:
		return BackendFraud
	default:
		return BackendFull
	}
}

// IsPartial indique si le mode est une variante partielle
func (m Mode) IsPartial() bool {
	return m == ModePartialAmount || m == ModePartialItems
}

// Selection porte le mode choisi et les saisies propres à chaque mode.
// Seul le champ correspondant au mode est lu : une saisie résiduelle d'un
// mode précédent n'influence jamais le calcul.
type Selection struct {
	Mode           Mode        `json:"mode"`
	EnteredAmount  string      `json:"entered_amount,omitempty"`
	ItemQuantities map[int]int `json:"item_quantities,omitempty"`
}

// Request est la charge utile validée envoyée au magasin de commandes
type Request struct {
	Type           BackendType          `json:"type"`
	Amount         float64              `json:"amount"`
	Note           string               `json:"note,omitempty"`
	RestockItems   []models.RestockItem `json:"items,omitempty"`
	TargetStatus   string               `json:"status"` // refunded ou cancelled
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// Derived regroupe les valeurs affichées en direct pendant la saisie
type Derived struct {
	Amount         float64 `json:"amount"`
	Percent        float64 `json:"percent"`
	AmountRetained float64 `json:"amount_retained"`
}

// ComputeRefundAmount calcule le montant remboursé pour le mode courant.
// Jamais d'erreur pendant la saisie : une entrée invalide vaut 0, la
// validation ne se fait qu'à la soumission.
func ComputeRefundAmount(sel Selection, snap models.OrderSnapshot) float64 {
	switch sel.Mode {
	case ModePartialAmount:
		entered, err := strconv.ParseFloat(strings.TrimSpace(sel.EnteredAmount), 64)
		// ParseFloat accepte "NaN" et "Inf" : des montants non finis ne
		// doivent jamais atteindre la validation ni Stripe
		if err != nil || math.IsNaN(entered) || math.IsInf(entered, 0) {
			return 0
		}
		return entered
	case ModePartialItems:
		var total float64
		for idx, qty := range sel.ItemQuantities {
			if idx < 0 || idx >= len(snap.Items) {
				continue
			}
			total += snap.Items[idx].UnitPrice * float64(qty)
		}
		return total
	default:
		// full, damaged et fraud couvrent toujours le sous-total entier,
		// seule la classification comptable diffère
		return snap.Subtotal
	}
}

// DerivePercent borne le pourcentage à 100 pour protéger l'affichage
// quand les données amont sont incohérentes
func DerivePercent(amount, subtotal float64) float64 {
	if subtotal <= 0 {
		return 0
	}
	percent := amount / subtotal * 100
	if percent > 100 {
		return 100
	}
	return percent
}

// Derive calcule l'ensemble des valeurs affichées en direct
func Derive(sel Selection, snap models.OrderSnapshot) Derived {
	amount := ComputeRefundAmount(sel, snap)
	retained := snap.Subtotal - amount
	if retained < 0 {
		retained = 0
	}
	return Derived{
		Amount:         amount,
		Percent:        DerivePercent(amount, snap.Subtotal),
		AmountRetained: retained,
	}
}

// BuildRequest valide la sélection et construit la charge utile finale.
// Court-circuit sur le premier échec. Les modes full/damaged/fraud ne
// peuvent pas échouer : leur montant vaut le sous-total par construction.
func BuildRequest(sel Selection, snap models.OrderSnapshot, note, targetStatus string) (*Request, error) {
	if targetStatus != models.StatusRefunded && targetStatus != models.StatusCancelled {
		return nil, fmt.Errorf("statut cible invalide: %q", targetStatus)
	}

	amount := ComputeRefundAmount(sel, snap)

	if sel.Mode == ModePartialItems && amount <= 0 {
		return nil, &ValidationError{
			Code:    CodeNoItemsSelected,
			Message: "Sélectionnez au moins un article à rembourser",
		}
	}
	if sel.Mode == ModePartialAmount && amount <= 0 {
		return nil, &ValidationError{
			Code:    CodeEmptyRefund,
			Message: "Le montant du remboursement doit être supérieur à 0",
		}
	}
	if sel.Mode.IsPartial() && amount > snap.Subtotal {
		return nil, &ValidationError{
			Code:    CodeExceedsOrderTotal,
			Message: fmt.Sprintf("Le montant dépasse le total de la commande (%.2f %s)", snap.Subtotal, snap.Currency),
		}
	}

	req := &Request{
		Type:         ToBackendType(sel.Mode),
		Amount:       amount,
		Note:         strings.TrimSpace(note),
		TargetStatus: targetStatus,
	}

	if sel.Mode == ModePartialItems {
		req.RestockItems = restockList(sel.ItemQuantities)
	}

	return req, nil
}

// restockList ne retient que les lignes avec une quantité positive,
// triées par index pour une sortie stable
func restockList(quantities map[int]int) []models.RestockItem {
	indexes := make([]int, 0, len(quantities))
	for idx, qty := range quantities {
		if qty > 0 {
			indexes = append(indexes, idx)
		}
	}
	sort.Ints(indexes)
	items := make([]models.RestockItem, 0, len(indexes))
	for _, idx := range indexes {
		items = append(items, models.RestockItem{ItemIndex: idx, Quantity: quantities[idx]})
	}
	return items
}
