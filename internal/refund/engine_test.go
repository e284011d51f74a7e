package refund

import (
	"fmt"
	"testing"

	"velora_back_office/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotBDT() models.OrderSnapshot {
	return models.OrderSnapshot{
		Subtotal: 1000.00,
		Currency: "BDT",
		Items: []models.SnapshotItem{
			{UnitPrice: 250.00, Quantity: 4},
		},
		PaymentMethod: "card",
		Status:        models.StatusPaid,
	}
}

func snapshotTwoItems() models.OrderSnapshot {
	return models.OrderSnapshot{
		Subtotal: 400.00,
		Currency: "EUR",
		Items: []models.SnapshotItem{
			{UnitPrice: 100.00, Quantity: 3},
			{UnitPrice: 50.00, Quantity: 2},
		},
		PaymentMethod: "card",
		Status:        models.StatusPaid,
	}
}

func TestComputeRefundAmountFullModes(t *testing.T) {
	snap := snapshotBDT()

	// full, damaged et fraud retournent toujours le sous-total intact
	for _, mode := range []Mode{ModeFull, ModeDamaged, ModeFraud} {
		sel := Selection{Mode: mode}
		assert.Equal(t, snap.Subtotal, ComputeRefundAmount(sel, snap), "mode %s", mode)
	}
}

func TestComputeRefundAmountEntered(t *testing.T) {
	snap := snapshotBDT()

	tests := []struct {
		entered string
		want    float64
	}{
		{"250", 250.00},
		{" 250.50 ", 250.50},
		{"", 0},
		{"abc", 0},
		{"12,50", 0}, // virgule non supportée, traitée comme saisie invalide
		{"NaN", 0},   // ParseFloat accepte NaN, pas nous
		{"Inf", 0},
		{"-Inf", 0},
	}

	for _, tt := range tests {
		sel := Selection{Mode: ModePartialAmount, EnteredAmount: tt.entered}
		assert.Equal(t, tt.want, ComputeRefundAmount(sel, snap), "saisie %q", tt.entered)
	}
}

func TestComputeRefundAmountItemsBounded(t *testing.T) {
	snap := snapshotTwoItems()

	// toute sélection bornée par les quantités commandées reste sous le sous-total
	for q0 := 0; q0 <= 3; q0++ {
		for q1 := 0; q1 <= 2; q1++ {
			sel := Selection{Mode: ModePartialItems, ItemQuantities: map[int]int{0: q0, 1: q1}}
			amount := ComputeRefundAmount(sel, snap)
			assert.LessOrEqual(t, amount, snap.Subtotal)
			if q0 == 3 && q1 == 2 {
				assert.Equal(t, snap.Subtotal, amount)
			} else {
				assert.Less(t, amount, snap.Subtotal)
			}
		}
	}
}

func TestComputeRefundAmountIgnoresUnknownIndexes(t *testing.T) {
	snap := snapshotTwoItems()
	sel := Selection{Mode: ModePartialItems, ItemQuantities: map[int]int{0: 1, 7: 5, -1: 2}}
	assert.Equal(t, 100.00, ComputeRefundAmount(sel, snap))
}

func TestToBackendTypeCollapse(t *testing.T) {
	assert.Equal(t, BackendPartial, ToBackendType(ModePartialAmount))
	assert.Equal(t, BackendPartial, ToBackendType(ModePartialItems))
	assert.Equal(t, BackendFull, ToBackendType(ModeFull))
	assert.Equal(t, BackendDamaged, ToBackendType(ModeDamaged))
	assert.Equal(t, BackendFraud, ToBackendType(ModeFraud))
}

func TestDerivePercentClamp(t *testing.T) {
	assert.Equal(t, 100.0, DerivePercent(1500, 1000))
	assert.Equal(t, 25.0, DerivePercent(250, 1000))
	assert.Equal(t, 0.0, DerivePercent(250, 0))
	assert.Equal(t, 0.0, DerivePercent(250, -10))
}

func TestScenarioFullRefund(t *testing.T) {
	snap := snapshotBDT()
	sel := Selection{Mode: ModeFull}

	d := Derive(sel, snap)
	assert.Equal(t, 1000.00, d.Amount)
	assert.Equal(t, 100.0, d.Percent)
	assert.Equal(t, 0.0, d.AmountRetained)

	req, err := BuildRequest(sel, snap, "", models.StatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, BackendFull, req.Type)
	assert.Equal(t, 1000.00, req.Amount)
}

func TestScenarioPartialByAmount(t *testing.T) {
	snap := snapshotBDT()
	sel := Selection{Mode: ModePartialAmount, EnteredAmount: "250"}

	d := Derive(sel, snap)
	assert.Equal(t, 250.00, d.Amount)
	assert.Equal(t, 25.0, d.Percent)
	assert.Equal(t, 750.00, d.AmountRetained)

	req, err := BuildRequest(sel, snap, "", models.StatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, BackendPartial, req.Type)
	assert.Equal(t, 250.00, req.Amount)
	assert.Empty(t, req.RestockItems)
}

func TestScenarioPartialByItems(t *testing.T) {
	snap := snapshotTwoItems()
	sel := Selection{Mode: ModePartialItems, ItemQuantities: map[int]int{0: 2}}

	req, err := BuildRequest(sel, snap, "  carton abîmé  ", models.StatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, BackendPartial, req.Type)
	assert.Equal(t, 200.00, req.Amount)
	assert.Equal(t, "carton abîmé", req.Note)
	assert.Equal(t, []models.RestockItem{{ItemIndex: 0, Quantity: 2}}, req.RestockItems)
}

func TestScenarioExceedsOrderTotal(t *testing.T) {
	snap := snapshotBDT()
	sel := Selection{Mode: ModePartialAmount, EnteredAmount: "1500"}

	_, err := BuildRequest(sel, snap, "", models.StatusRefunded)
	require.Error(t, err)

	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, CodeExceedsOrderTotal, ve.Code)
	// le message doit donner le sous-total formaté à l'opérateur
	assert.Contains(t, ve.Message, "1000.00")
}

func TestScenarioNoItemsSelected(t *testing.T) {
	snap := snapshotTwoItems()

	for name, quantities := range map[string]map[int]int{
		"aucune ligne":     {},
		"quantités à zéro": {0: 0, 1: 0},
	} {
		sel := Selection{Mode: ModePartialItems, ItemQuantities: quantities}
		_, err := BuildRequest(sel, snap, "", models.StatusRefunded)
		require.Error(t, err, name)

		ve, ok := AsValidation(err)
		require.True(t, ok, name)
		assert.Equal(t, CodeNoItemsSelected, ve.Code, name)
	}
}

func TestValidationOrderZeroAmount(t *testing.T) {
	// "0" échoue sur le montant vide, jamais sur le dépassement
	snap := snapshotBDT()
	sel := Selection{Mode: ModePartialAmount, EnteredAmount: "0"}

	_, err := BuildRequest(sel, snap, "", models.StatusRefunded)
	require.Error(t, err)

	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, CodeEmptyRefund, ve.Code)
}

func TestBuildRequestRejectsNonFiniteAmount(t *testing.T) {
	// "NaN" échappe aux comparaisons <= 0 et > sous-total : il doit être
	// traité comme saisie invalide bien avant d'atteindre Stripe
	snap := snapshotBDT()

	for _, entered := range []string{"NaN", "Inf", "+Inf", "-Inf"} {
		sel := Selection{Mode: ModePartialAmount, EnteredAmount: entered}
		_, err := BuildRequest(sel, snap, "", models.StatusRefunded)
		require.Error(t, err, "saisie %q", entered)

		ve, ok := AsValidation(err)
		require.True(t, ok, "saisie %q", entered)
		assert.Equal(t, CodeEmptyRefund, ve.Code, "saisie %q", entered)
	}
}

func TestDamagedIgnoresStaleEnteredAmount(t *testing.T) {
	// une saisie résiduelle d'un passage en mode partiel ne doit pas
	// influencer un remboursement pour casse
	snap := snapshotBDT()
	sel := Selection{Mode: ModeDamaged, EnteredAmount: "50", ItemQuantities: map[int]int{0: 1}}

	assert.Equal(t, snap.Subtotal, ComputeRefundAmount(sel, snap))

	req, err := BuildRequest(sel, snap, "", models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, BackendDamaged, req.Type)
	assert.Equal(t, snap.Subtotal, req.Amount)
	assert.Empty(t, req.RestockItems)
}

func TestBuildRequestRejectsBadTargetStatus(t *testing.T) {
	snap := snapshotBDT()
	_, err := BuildRequest(Selection{Mode: ModeFull}, snap, "", models.StatusShipped)
	require.Error(t, err)
	_, ok := AsValidation(err)
	assert.False(t, ok)
}

func TestFullModesNeverFailValidation(t *testing.T) {
	// un snapshot à sous-total nul reste acceptable en mode full :
	// événement comptable "tout ou rien", jamais bloqué par les bornes
	snap := models.OrderSnapshot{
		Subtotal: 0,
		Currency: "EUR",
		Items:    []models.SnapshotItem{{UnitPrice: 0, Quantity: 1}},
		Status:   models.StatusPaid,
	}
	for _, mode := range []Mode{ModeFull, ModeDamaged, ModeFraud} {
		_, err := BuildRequest(Selection{Mode: mode}, snap, "", models.StatusRefunded)
		assert.NoError(t, err, "mode %s", mode)
	}
}

func TestRestockItemsSortedAndFiltered(t *testing.T) {
	snap := models.OrderSnapshot{
		Subtotal: 600.00,
		Currency: "EUR",
		Items: []models.SnapshotItem{
			{UnitPrice: 100, Quantity: 2},
			{UnitPrice: 100, Quantity: 2},
			{UnitPrice: 100, Quantity: 2},
		},
		Status: models.StatusPaid,
	}
	sel := Selection{Mode: ModePartialItems, ItemQuantities: map[int]int{2: 1, 0: 1, 1: 0}}

	req, err := BuildRequest(sel, snap, "", models.StatusRefunded)
	require.NoError(t, err)
	assert.Equal(t, []models.RestockItem{
		{ItemIndex: 0, Quantity: 1},
		{ItemIndex: 2, Quantity: 1},
	}, req.RestockItems)
}

func TestParseMode(t *testing.T) {
	for _, raw := range []string{"full", "partial_amount", "partial_items", "damaged", "fraud"} {
		m, err := ParseMode(raw)
		require.NoError(t, err)
		assert.Equal(t, Mode(raw), m)
	}
	_, err := ParseMode("partial")
	assert.Error(t, err)
}

func ExampleDerive() {
	snap := models.OrderSnapshot{
		Subtotal: 1000,
		Currency: "BDT",
		Items:    []models.SnapshotItem{{UnitPrice: 250, Quantity: 4}},
	}
	d := Derive(Selection{Mode: ModePartialAmount, EnteredAmount: "250"}, snap)
	fmt.Printf("%.2f %.0f%% %.2f\n", d.Amount, d.Percent, d.AmountRetained)
	// Output: 250.00 25% 750.00
}
