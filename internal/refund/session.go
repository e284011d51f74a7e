package refund

import (
	"context"
	"errors"
	"sync"

	"velora_back_office/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// State suit le cycle de vie d'une session de remboursement
type State string

const (
	StateEditing    State = "editing"
	StateSubmitting State = "submitting"
	StateDone       State = "done"
)

var (
	ErrSubmitInFlight = errors.New("une soumission est déjà en cours pour cette session")
	ErrSessionDone    = errors.New("cette session de remboursement est terminée")
)

// Store est le collaborateur qui applique le remboursement de façon
// autoritaire. Ses erreurs sont remontées telles quelles à l'opérateur.
type Store interface {
	ApplyRefund(ctx context.Context, orderID gocql.UUID, req *Request) (*models.Order, error)
}

// Session encapsule une séance interactive de remboursement : le mode et
// les saisies courantes, le statut cible, et la machine à états
// Editing → Submitting → Done. Une session ne survit pas à sa soumission.
type Session struct {
	mu    sync.Mutex
	state State

	snapshot models.OrderSnapshot
	sel      Selection
	note     string
	target   string

	// clé générée à l'ouverture : toutes les tentatives de soumission de
	// cette session portent la même clé, le magasin rejette les doublons
	idempotencyKey string
}

func NewSession(snapshot models.OrderSnapshot) *Session {
	return &Session{
		state:          StateEditing,
		snapshot:       snapshot,
		sel:            Selection{Mode: ModeFull, ItemQuantities: make(map[int]int)},
		target:         models.StatusRefunded,
		idempotencyKey: uuid.NewString(),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IdempotencyKey() string {
	return s.idempotencyKey
}

// SetMode change la raison de remboursement. Les saisies propres aux modes
// partiels sont remises à zéro à chaque changement : un montant ou une
// sélection d'articles résiduels ne traversent jamais un changement de mode.
func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sel.Mode == m {
		return
	}
	s.sel = Selection{Mode: m, ItemQuantities: make(map[int]int)}
}

func (s *Session) SetEnteredAmount(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sel.EnteredAmount = raw
}

// SetItemQuantity borne la quantité sélectionnée à [0, quantité commandée].
// C'est le seul point de mutation des quantités : le moteur en aval n'a
// jamais besoin de re-borner.
func (s *Session) SetItemQuantity(index, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.snapshot.Items) {
		return
	}
	if qty < 0 {
		qty = 0
	}
	if max := s.snapshot.Items[index].Quantity; qty > max {
		qty = max
	}
	s.sel.ItemQuantities[index] = qty
}

func (s *Session) SetNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.note = note
}

func (s *Session) SetTargetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = status
}

// Preview recalcule les valeurs dérivées affichées pendant la saisie
func (s *Session) Preview() Derived {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Derive(s.sel, s.snapshot)
}

// Validate construit la requête à titre consultatif. En état Editing les
// échecs sont informatifs, seule la soumission fait foi.
func (s *Session) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := BuildRequest(s.sel, s.snapshot, s.note, s.target)
	return err
}

// Submit construit la requête autoritaire et l'applique via le magasin.
// Une seule soumission peut être en vol : toute tentative concurrente est
// rejetée. Un échec de validation ou du magasin ramène la session en
// Editing, un succès la termine.
func (s *Session) Submit(ctx context.Context, store Store) (*models.Order, error) {
	s.mu.Lock()
	switch s.state {
	case StateSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StateDone:
		s.mu.Unlock()
		return nil, ErrSessionDone
	}

	req, err := BuildRequest(s.sel, s.snapshot, s.note, s.target)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	req.IdempotencyKey = s.idempotencyKey
	s.state = StateSubmitting
	orderID := s.snapshot.OrderID
	s.mu.Unlock()

	order, err := store.ApplyRefund(ctx, orderID, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateEditing
		return nil, err
	}
	s.state = StateDone
	return order, nil
}
