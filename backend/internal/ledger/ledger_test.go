package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/carteira/backend/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func op(t string, qty, price string, day int) models.Operation {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	return models.Operation{
		ID:            uuid.New(),
		Type:          t,
		Quantity:      d(qty),
		Price:         d(price),
		OperationDate: base.AddDate(0, 0, day),
		CreatedAt:     base.AddDate(0, 0, day),
	}
}

func emptyPosition() models.Position {
	return models.Position{
		UserID:      uuid.New(),
		AssetCode:   "PETR4",
		Quantity:    decimal.Zero,
		AverageCost: decimal.Zero,
	}
}

func TestApplyEntradaWeightedAverage(t *testing.T) {
	pos := emptyPosition()

	pos, closed, err := Apply(pos, op(models.OpEntrada, "100", "10.00", 0))
	require.NoError(t, err)
	assert.False(t, closed)
	assert.True(t, pos.Quantity.Equal(d("100")))
	assert.True(t, pos.AverageCost.Equal(d("10.00")))

	pos, closed, err = Apply(pos, op(models.OpEntrada, "50", "13.00", 1))
	require.NoError(t, err)
	assert.False(t, closed)
	assert.True(t, pos.Quantity.Equal(d("150")))
	assert.True(t, pos.AverageCost.Equal(d("11.00")), "got %s", pos.AverageCost)
	assert.True(t, pos.TotalInvested.Equal(d("1650")))
}

func TestApplySaidaKeepsAverage(t *testing.T) {
	pos := emptyPosition()
	pos, _, err := Apply(pos, op(models.OpEntrada, "100", "10.00", 0))
	require.NoError(t, err)
	pos, _, err = Apply(pos, op(models.OpEntrada, "50", "13.00", 1))
	require.NoError(t, err)

	pos, closed, err := Apply(pos, op(models.OpSaida, "60", "0", 2))
	require.NoError(t, err)
	assert.False(t, closed)
	assert.True(t, pos.Quantity.Equal(d("90")))
	assert.True(t, pos.AverageCost.Equal(d("11.00")))

	// Selling the remainder closes the position.
	pos, closed, err = Apply(pos, op(models.OpSaida, "90", "0", 3))
	require.NoError(t, err)
	assert.True(t, closed)
	assert.True(t, pos.Quantity.IsZero())
}

func TestApplySaidaInsufficientRejectedWithoutMutation(t *testing.T) {
	pos := emptyPosition()
	pos, _, err := Apply(pos, op(models.OpEntrada, "90", "11.00", 0))
	require.NoError(t, err)

	got, closed, err := Apply(pos, op(models.OpSaida, "200", "0", 1))
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
	assert.False(t, closed)
	assert.True(t, got.Quantity.Equal(d("90")))
	assert.True(t, got.AverageCost.Equal(d("11.00")))
}

func TestApplyAjusteSnapshotsState(t *testing.T) {
	pos := emptyPosition()
	pos, _, err := Apply(pos, op(models.OpEntrada, "100", "10.00", 0))
	require.NoError(t, err)

	pos, closed, err := Apply(pos, op(models.OpAjuste, "120", "9.50", 1))
	require.NoError(t, err)
	assert.False(t, closed)
	assert.True(t, pos.Quantity.Equal(d("120")))
	assert.True(t, pos.AverageCost.Equal(d("9.50")))
	assert.True(t, pos.TotalInvested.Equal(d("1140")))

	// Ajuste to zero closes the position.
	_, closed, err = Apply(pos, op(models.OpAjuste, "0", "0", 2))
	require.NoError(t, err)
	assert.True(t, closed)
}

func TestApplyValidation(t *testing.T) {
	pos := emptyPosition()

	tests := []struct {
		name string
		op   models.Operation
		want error
	}{
		{"zero quantity entrada", op(models.OpEntrada, "0", "10", 0), ErrInvalidQuantity},
		{"negative quantity saida", op(models.OpSaida, "-5", "10", 0), ErrInvalidQuantity},
		{"negative price", op(models.OpEntrada, "10", "-1", 0), ErrInvalidPrice},
		{"negative ajuste quantity", op(models.OpAjuste, "-1", "10", 0), ErrInvalidQuantity},
		{"unknown type", op("split", "10", "10", 0), ErrUnknownType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Apply(pos, tt.op)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFoldMatchesIncrementalApplication(t *testing.T) {
	userID := uuid.New()
	ops := []models.Operation{
		op(models.OpEntrada, "100", "10.00", 0),
		op(models.OpEntrada, "50", "13.00", 1),
		op(models.OpSaida, "60", "0", 2),
		op(models.OpEntrada, "30", "12.50", 3),
		op(models.OpAjuste, "115", "11.20", 4),
		op(models.OpSaida, "15", "0", 5),
	}

	folded, closed, err := Fold(userID, "VALE3", ops)
	require.NoError(t, err)
	require.False(t, closed)

	incremental := models.Position{UserID: userID, AssetCode: "VALE3",
		Quantity: decimal.Zero, AverageCost: decimal.Zero}
	for _, o := range ops {
		incremental, _, err = Apply(incremental, o)
		require.NoError(t, err)
	}

	assert.True(t, folded.Quantity.Equal(incremental.Quantity))
	assert.True(t, folded.AverageCost.Equal(incremental.AverageCost))
	assert.True(t, folded.TotalInvested.Equal(incremental.TotalInvested))
}

func TestFoldSortsByDateThenCreation(t *testing.T) {
	userID := uuid.New()
	// Deliberately shuffled: the sell arrives first in slice order but
	// is dated after both buys.
	ops := []models.Operation{
		op(models.OpSaida, "60", "0", 2),
		op(models.OpEntrada, "50", "13.00", 1),
		op(models.OpEntrada, "100", "10.00", 0),
	}

	pos, closed, err := Fold(userID, "PETR4", ops)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.True(t, pos.Quantity.Equal(d("90")))
	assert.True(t, pos.AverageCost.Equal(d("11.00")))
}

func TestFoldWeightedMeanOfEntradas(t *testing.T) {
	userID := uuid.New()
	ops := []models.Operation{
		op(models.OpEntrada, "10", "5.00", 0),
		op(models.OpEntrada, "20", "8.00", 1),
		op(models.OpEntrada, "70", "6.50", 2),
	}

	pos, _, err := Fold(userID, "ITUB4", ops)
	require.NoError(t, err)

	// Σ(q·p)/Σ(q) = (50 + 160 + 455) / 100
	assert.True(t, pos.Quantity.Equal(d("100")))
	assert.True(t, pos.AverageCost.Equal(d("6.65")), "got %s", pos.AverageCost)
}

func TestFoldEmptyAndFullClose(t *testing.T) {
	userID := uuid.New()

	pos, closed, err := Fold(userID, "BBAS3", nil)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.True(t, pos.Quantity.IsZero())

	ops := []models.Operation{
		op(models.OpEntrada, "40", "20.00", 0),
		op(models.OpSaida, "40", "0", 1),
	}
	_, closed, err = Fold(userID, "BBAS3", ops)
	require.NoError(t, err)
	assert.True(t, closed)
}

func TestFoldSaidaBeforeAnyEntrada(t *testing.T) {
	_, _, err := Fold(uuid.New(), "PETR4", []models.Operation{
		op(models.OpSaida, "10", "0", 0),
	})
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
}

func TestApplyFirstPurchaseDateTracksEarliestEntrada(t *testing.T) {
	pos := emptyPosition()

	later := op(models.OpEntrada, "10", "10", 5)
	pos, _, err := Apply(pos, later)
	require.NoError(t, err)
	require.NotNil(t, pos.FirstPurchaseDate)
	assert.Equal(t, later.OperationDate, *pos.FirstPurchaseDate)

	earlier := op(models.OpEntrada, "10", "10", 1)
	pos, _, err = Apply(pos, earlier)
	require.NoError(t, err)
	assert.Equal(t, earlier.OperationDate, *pos.FirstPurchaseDate)
}
