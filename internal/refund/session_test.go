package refund

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"velora_back_office/internal/models"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore simule le magasin de commandes, avec un délai optionnel pour
// exercer la protection contre la double soumission
type fakeStore struct {
	mu       sync.Mutex
	applied  []*Request
	failWith error
	delay    time.Duration
}

func (f *fakeStore) ApplyRefund(ctx context.Context, orderID gocql.UUID, req *Request) (*models.Order, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.applied = append(f.applied, req)
	return &models.Order{ID: orderID, Status: req.TargetStatus, Subtotal: 400}, nil
}

func newTestSession() *Session {
	return NewSession(models.OrderSnapshot{
		Subtotal: 400.00,
		Currency: "EUR",
		Items: []models.SnapshotItem{
			{UnitPrice: 100.00, Quantity: 3},
			{UnitPrice: 50.00, Quantity: 2},
		},
		PaymentMethod: "card",
		Status:        models.StatusPaid,
	})
}

func TestSessionDefaultsToFullMode(t *testing.T) {
	s := newTestSession()
	assert.Equal(t, StateEditing, s.State())

	d := s.Preview()
	assert.Equal(t, 400.00, d.Amount)
	assert.Equal(t, 100.0, d.Percent)
}

func TestSessionStepperClamped(t *testing.T) {
	s := newTestSession()
	s.SetMode(ModePartialItems)

	s.SetItemQuantity(0, 99) // borné à la quantité commandée
	s.SetItemQuantity(1, -4) // borné à zéro
	s.SetItemQuantity(9, 2)  // index inconnu ignoré

	d := s.Preview()
	assert.Equal(t, 300.00, d.Amount)
}

func TestSessionModeSwitchResetsInputs(t *testing.T) {
	s := newTestSession()

	s.SetMode(ModePartialAmount)
	s.SetEnteredAmount("120")
	assert.Equal(t, 120.00, s.Preview().Amount)

	// le passage par articles ne réutilise pas le montant saisi
	s.SetMode(ModePartialItems)
	assert.Equal(t, 0.00, s.Preview().Amount)
	s.SetItemQuantity(1, 2)
	assert.Equal(t, 100.00, s.Preview().Amount)

	// retour au montant : la sélection d'articles est oubliée
	s.SetMode(ModePartialAmount)
	assert.Equal(t, 0.00, s.Preview().Amount)

	// re-sélectionner le même mode ne remet rien à zéro
	s.SetEnteredAmount("80")
	s.SetMode(ModePartialAmount)
	assert.Equal(t, 80.00, s.Preview().Amount)
}

func TestSessionSubmitSuccess(t *testing.T) {
	s := newTestSession()
	store := &fakeStore{}

	s.SetMode(ModePartialItems)
	s.SetItemQuantity(0, 2)
	s.SetNote("client recontacté")
	s.SetTargetStatus(models.StatusRefunded)

	order, err := s.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, order.Status)
	assert.Equal(t, StateDone, s.State())

	require.Len(t, store.applied, 1)
	req := store.applied[0]
	assert.Equal(t, BackendPartial, req.Type)
	assert.Equal(t, 200.00, req.Amount)
	assert.Equal(t, s.IdempotencyKey(), req.IdempotencyKey)
	assert.Equal(t, []models.RestockItem{{ItemIndex: 0, Quantity: 2}}, req.RestockItems)
}

func TestSessionValidationFailureStaysEditing(t *testing.T) {
	s := newTestSession()
	store := &fakeStore{}

	s.SetMode(ModePartialAmount)
	s.SetEnteredAmount("0")

	_, err := s.Submit(context.Background(), store)
	require.Error(t, err)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, CodeEmptyRefund, ve.Code)

	// l'opérateur corrige et resoumet dans la même session
	assert.Equal(t, StateEditing, s.State())
	s.SetEnteredAmount("150")
	_, err = s.Submit(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, StateDone, s.State())
}

func TestSessionStoreFailureSurfacedVerbatim(t *testing.T) {
	s := newTestSession()
	backendErr := errors.New("Cette commande a déjà été remboursée")
	store := &fakeStore{failWith: backendErr}

	_, err := s.Submit(context.Background(), store)
	require.ErrorIs(t, err, backendErr)
	assert.Equal(t, StateEditing, s.State())
}

func TestSessionDoubleSubmitRejected(t *testing.T) {
	s := newTestSession()
	store := &fakeStore{delay: 50 * time.Millisecond}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Submit(context.Background(), store)
		}(i)
	}
	wg.Wait()

	var inFlight, succeeded int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSubmitInFlight):
			inFlight++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, inFlight)
	assert.Len(t, store.applied, 1)
}

func TestSessionDoneRejectsResubmit(t *testing.T) {
	s := newTestSession()
	store := &fakeStore{}

	_, err := s.Submit(context.Background(), store)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), store)
	require.ErrorIs(t, err, ErrSessionDone)
	assert.Len(t, store.applied, 1)
}

func TestSessionValidateAdvisory(t *testing.T) {
	s := newTestSession()
	s.SetMode(ModePartialItems)

	err := s.Validate()
	require.Error(t, err)
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, CodeNoItemsSelected, ve.Code)

	// l'échec consultatif ne change pas l'état
	assert.Equal(t, StateEditing, s.State())
}
