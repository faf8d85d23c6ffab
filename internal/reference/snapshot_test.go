package reference

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotNormalisesHSCodes(t *testing.T) {
	snap := NewSnapshot(map[string]float64{"6403.99": 0.1}, nil, nil)

	rate, ok := snap.BaseRate("640399")
	require.True(t, ok)
	require.InDelta(t, 0.1, rate, 1e-12)

	rate, ok = snap.BaseRate(" 6403.99 ")
	require.True(t, ok)
	require.InDelta(t, 0.1, rate, 1e-12)

	_, ok = snap.BaseRate("")
	require.False(t, ok)
	_, ok = snap.BaseRate("0000.00")
	require.False(t, ok)
}

func TestSnapshotIgnoresInactiveAdditionalTariffs(t *testing.T) {
	snap := NewSnapshot(nil, []AdditionalTariff{
		{OriginCountry: "cn", Rate: 0.25, Active: true},
		{OriginCountry: "VN", Rate: 0.05, Active: false},
	}, nil)

	rate, ok := snap.AdditionalRate("CN")
	require.True(t, ok)
	require.InDelta(t, 0.25, rate, 1e-12)

	_, ok = snap.AdditionalRate("VN")
	require.False(t, ok)
	_, ok = snap.AdditionalRate("MX")
	require.False(t, ok)
}

func TestSnapshotVATFallsBackToStaticTable(t *testing.T) {
	snap := NewSnapshot(nil, nil, nil)

	rate, ok := snap.VATRate("au")
	require.True(t, ok)
	require.InDelta(t, 0.10, rate, 1e-12)

	rate, ok = snap.VATRate("GB")
	require.True(t, ok)
	require.InDelta(t, 0.20, rate, 1e-12)

	_, ok = snap.VATRate("ZZ")
	require.False(t, ok)

	snap.VAT = map[string]float64{"AU": 0.15}
	rate, ok = snap.VATRate("AU")
	require.True(t, ok)
	require.InDelta(t, 0.15, rate, 1e-12)
}

func TestSnapshotTiersSortedAndCopied(t *testing.T) {
	snap := NewSnapshot(nil, nil, []WeightTier{
		{WeightBand: 5, EstimatedShipping: 40},
		{WeightBand: 1, EstimatedShipping: 18},
		{WeightBand: 3, EstimatedShipping: 32},
	})

	tiers := snap.Tiers()
	require.Len(t, tiers, 3)
	require.Equal(t, 1.0, tiers[0].WeightBand)
	require.Equal(t, 3.0, tiers[1].WeightBand)
	require.Equal(t, 5.0, tiers[2].WeightBand)

	tiers[0].EstimatedShipping = 999
	require.Equal(t, 18.0, snap.Tiers()[0].EstimatedShipping)
}

func TestNilSnapshotIsEmpty(t *testing.T) {
	var snap *Snapshot
	_, ok := snap.BaseRate("6403.99")
	require.False(t, ok)
	_, ok = snap.AdditionalRate("CN")
	require.False(t, ok)
	require.Nil(t, snap.Tiers())
}

func TestCountryVATRatesReturnsCopy(t *testing.T) {
	rates := CountryVATRates()
	require.InDelta(t, 0.20, rates["UK"], 1e-12)
	rates["UK"] = 0.5
	delete(rates, "DE")

	rate, ok := StaticVAT{}.VATRate("gb")
	require.True(t, ok)
	require.InDelta(t, 0.20, rate, 1e-12)
	_, ok = StaticVAT{}.VATRate("DE")
	require.True(t, ok)
}
