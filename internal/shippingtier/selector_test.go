package shippingtier

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/landedcost/internal/reference"
	"github.com/odyssey-erp/landedcost/internal/shared"
)

type fixedTiers []reference.WeightTier

func (f fixedTiers) Tiers() []reference.WeightTier { return f }

func rateCard() fixedTiers {
	return fixedTiers{
		{WeightBand: 1, EstimatedShipping: 18},
		{WeightBand: 2, EstimatedShipping: 25},
		{WeightBand: 3, EstimatedShipping: 32},
		{WeightBand: 5, EstimatedShipping: 40},
		{WeightBand: 10, EstimatedShipping: 62},
	}
}

func TestSelectWithinCap(t *testing.T) {
	sel := NewSelector(rateCard(), nil)

	got, err := sel.SelectShippingTier(1.2, 20, 10, 35, 0.15, 150)
	require.NoError(t, err)
	require.True(t, got.IsViable)
	require.Zero(t, got.ProfitReduction)
	require.Equal(t, 1.2, got.RecommendedWeight)
	require.InDelta(t, 30.0, got.DisplayShipping, 1e-9)
}

func TestSelectExactlyAtCap(t *testing.T) {
	sel := NewSelector(rateCard(), nil)

	got, err := sel.SelectShippingTier(1, 25, 10, 35, 0.15, 150)
	require.NoError(t, err)
	require.True(t, got.IsViable)
	require.Zero(t, got.ProfitReduction)
}

func TestSelectHeavierTier(t *testing.T) {
	sel := NewSelector(rateCard(), nil)

	got, err := sel.SelectShippingTier(3, 28, 12, 35, 0.15, 150)
	require.NoError(t, err)
	require.True(t, got.IsViable)
	require.Equal(t, 5.0, got.RecommendedWeight)
	require.Equal(t, 35.0, got.DisplayShipping)
	require.InDelta(t, 40.0, got.ActualCost, 1e-9)
	require.InDelta(t, 5.0, got.ProfitReduction, 1e-9)
	require.Contains(t, got.Reason, "5kg")
}

func TestSelectTierFoundButExcessTooLarge(t *testing.T) {
	sel := NewSelector(rateCard(), nil)

	got, err := sel.SelectShippingTier(3, 40, 15, 35, 0.10, 100)
	require.NoError(t, err)
	require.False(t, got.IsViable)
	require.Equal(t, 10.0, got.RecommendedWeight)
	require.InDelta(t, 20.0, got.ProfitReduction, 1e-9)
	require.Contains(t, got.Reason, "margin budget")
}

func TestSelectNoTierQualifies(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sel := NewSelector(rateCard(), logger)

	got, err := sel.SelectShippingTier(12, 60, 20, 35, 0.15, 300)
	require.NoError(t, err)
	require.False(t, got.IsViable)
	require.NotEmpty(t, got.Reason)
	require.Equal(t, 35.0, got.DisplayShipping)
	require.InDelta(t, 80.0, got.ActualCost, 1e-9)
	require.InDelta(t, 45.0, got.ProfitReduction, 1e-9)
	require.Contains(t, buf.String(), "no weight tier covers shipping")
}

func TestSelectWithoutTierTable(t *testing.T) {
	sel := NewSelector(nil, nil)

	got, err := sel.SelectShippingTier(1, 40, 5, 35, 0.2, 100)
	require.NoError(t, err)
	require.False(t, got.IsViable)
}

func TestSelectUsesDefaultSnapshotTiers(t *testing.T) {
	sel := NewSelector(reference.DefaultSnapshot(), nil)

	got, err := sel.SelectShippingTier(3, 28, 12, 35, 0.15, 150)
	require.NoError(t, err)
	require.Equal(t, 5.0, got.RecommendedWeight)
	require.True(t, got.IsViable)
}

func TestSelectRejectsMalformedInput(t *testing.T) {
	sel := NewSelector(rateCard(), nil)

	_, err := sel.SelectShippingTier(-1, 10, 0, 35, 0.1, 100)
	require.True(t, errors.Is(err, shared.ErrValidation))

	_, err = sel.SelectShippingTier(1, 10, math.Inf(1), 35, 0.1, 100)
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.True(t, vErr.HasField("ddp_fee"))
}
