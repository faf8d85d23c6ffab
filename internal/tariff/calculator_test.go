package tariff

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

func newTestCalculator(buf *bytes.Buffer) *Calculator {
	logger := slog.New(slog.NewTextHandler(buf, nil))
	return NewSnapshotCalculator(reference.DefaultSnapshot(), logger)
}

func TestUnresolvedHSCodeAustralia(t *testing.T) {
	var logs bytes.Buffer
	calc := newTestCalculator(&logs)

	got, err := calc.CalculateTariff("0000.00", "AU", 100, "")
	require.NoError(t, err)
	require.False(t, got.HSCodeResolved)
	require.InDelta(t, DefaultBaseRate, got.BaseTariff, 1e-12)
	require.InDelta(t, 5.80, got.TariffAmount, 1e-9)
	require.InDelta(t, 8.00, got.ProcessingFee, 1e-9)
	require.InDelta(t, 10.58, got.VATAmount, 1e-9)
	require.InDelta(t, 24.38, got.TotalDDPCost, 1e-9)
	require.Equal(t, DDPProcessingRate, got.DDPProcessingRate)
	require.Contains(t, logs.String(), "hs code not resolved")
}

func TestResolvedHSCodeWithOriginSurcharge(t *testing.T) {
	var logs bytes.Buffer
	calc := newTestCalculator(&logs)

	got, err := calc.Calculate(PricingRequest{HSCode: "640399", CountryCode: "UK", ItemCostUSD: 200, OriginCountry: "CN"})
	require.NoError(t, err)
	require.True(t, got.HSCodeResolved)
	require.InDelta(t, 0.10, got.BaseTariff, 1e-12)
	require.InDelta(t, 0.10, got.AdditionalTariff, 1e-12)
	require.InDelta(t, 0.20, got.TariffRate, 1e-12)
	require.InDelta(t, 40.00, got.TariffAmount, 1e-9)
	require.InDelta(t, 16.00, got.ProcessingFee, 1e-9)
	require.InDelta(t, 48.00, got.VATAmount, 1e-9)
	require.InDelta(t, 104.00, got.TotalDDPCost, 1e-9)
	require.Empty(t, logs.String())
}

func TestInactiveOriginAndUnknownCountryDefaultToZero(t *testing.T) {
	var logs bytes.Buffer
	calc := newTestCalculator(&logs)

	got, err := calc.CalculateTariff("9503.00", "ZZ", 80, "VN")
	require.NoError(t, err)
	require.Zero(t, got.AdditionalTariff)
	require.Zero(t, got.VATRate)
	require.Zero(t, got.TariffAmount)
	require.Zero(t, got.VATAmount)
	require.InDelta(t, 6.40, got.ProcessingFee, 1e-9)
	require.InDelta(t, 6.40, got.TotalDDPCost, 1e-9)
}

func TestUSHasNoVAT(t *testing.T) {
	calc := NewCalculator(nil, nil, nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	got, err := calc.CalculateTariff("", "us", 50, "")
	require.NoError(t, err)
	require.Zero(t, got.VATAmount)
	require.InDelta(t, 2.90, got.TariffAmount, 1e-9)
	require.InDelta(t, 4.00, got.ProcessingFee, 1e-9)
}

func TestVATBaseUsesUnroundedTariff(t *testing.T) {
	var logs bytes.Buffer
	calc := newTestCalculator(&logs)

	// Duty is 0.05887. On 1.015 + 0.06 the VAT would be 0.215 and round to 0.22.
	got, err := calc.CalculateTariff("0000.00", "UK", 1.015, "")
	require.NoError(t, err)
	require.InDelta(t, 0.06, got.TariffAmount, 1e-9)
	require.InDelta(t, 0.08, got.ProcessingFee, 1e-9)
	require.InDelta(t, 0.21, got.VATAmount, 1e-9)
	require.InDelta(t, 0.35, got.TotalDDPCost, 1e-9)
}

func TestTotalEqualsSumOfCharges(t *testing.T) {
	calc := newTestCalculator(&bytes.Buffer{})
	countries := []string{"US", "AU", "JP", "UK", "DE", "KR", "SG", "FR"}
	codes := []string{"4202.21", "6110.20", "9102.11", "unknown"}

	for cost := 0.0; cost < 5000; cost += 37.37 {
		for _, country := range countries {
			for _, code := range codes {
				got, err := calc.CalculateTariff(code, country, cost, "CN")
				require.NoError(t, err)
				sum := got.TariffAmount + got.ProcessingFee + got.VATAmount
				require.InDelta(t, sum, got.TotalDDPCost, 1e-6, "cost=%v country=%s code=%s", cost, country, code)
			}
		}
	}
}

func TestZeroCostYieldsZeroBurden(t *testing.T) {
	calc := newTestCalculator(&bytes.Buffer{})

	got, err := calc.CalculateTariff("6403.99", "DE", 0, "CN")
	require.NoError(t, err)
	require.Zero(t, got.TotalDDPCost)
}

func TestRejectsMalformedCost(t *testing.T) {
	calc := newTestCalculator(&bytes.Buffer{})

	for _, cost := range []float64{-0.01, math.NaN(), math.Inf(1)} {
		_, err := calc.CalculateTariff("6403.99", "AU", cost, "")
		require.Error(t, err)
		require.True(t, errors.Is(err, shared.ErrValidation))
		var verr *shared.ValidationError
		require.ErrorAs(t, err, &verr)
		require.True(t, verr.HasField("item_cost_usd"))
	}
}
