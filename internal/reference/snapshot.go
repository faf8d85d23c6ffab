package reference

import "context"

// Snapshot is an immutable in-memory copy of every reference table. It
// implements all lookup interfaces and is safe for concurrent reads.
type Snapshot struct {
	Tariffs     map[string]float64          `json:"tariffs"`
	Additional  map[string]AdditionalTariff `json:"additional"`
	VAT         map[string]float64          `json:"vat,omitempty"`
	WeightTiers []WeightTier                `json:"weight_tiers"`
}

// NewSnapshot normalises keys and sorts the weight tiers.
func NewSnapshot(tariffs map[string]float64, additional []AdditionalTariff, tiers []WeightTier) *Snapshot {
	s := &Snapshot{
		Tariffs:     make(map[string]float64, len(tariffs)),
		Additional:  make(map[string]AdditionalTariff, len(additional)),
		WeightTiers: sortTiers(tiers),
	}
	for code, rate := range tariffs {
		s.Tariffs[NormalizeHSCode(code)] = rate
	}
	for _, row := range additional {
		row.OriginCountry = NormalizeCountry(row.OriginCountry)
		s.Additional[row.OriginCountry] = row
	}
	return s
}

// BaseRate implements TariffTable.
func (s *Snapshot) BaseRate(hsCode string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	code := NormalizeHSCode(hsCode)
	if code == "" {
		return 0, false
	}
	rate, ok := s.Tariffs[code]
	return rate, ok
}

// AdditionalRate implements AdditionalTariffTable; inactive rows are ignored.
func (s *Snapshot) AdditionalRate(originCountry string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	row, ok := s.Additional[NormalizeCountry(originCountry)]
	if !ok || !row.Active {
		return 0, false
	}
	return row.Rate, true
}

// VATRate implements VATTable, overriding the static table when VAT is set.
func (s *Snapshot) VATRate(countryCode string) (float64, bool) {
	if s != nil && len(s.VAT) > 0 {
		rate, ok := s.VAT[NormalizeCountry(countryCode)]
		return rate, ok
	}
	return StaticVAT{}.VATRate(countryCode)
}

// Tiers implements WeightTierTable.
func (s *Snapshot) Tiers() []WeightTier {
	if s == nil {
		return nil
	}
	out := make([]WeightTier, len(s.WeightTiers))
	copy(out, s.WeightTiers)
	return out
}

// DefaultSnapshot returns the built-in rate card used by the CLI and tests
// when no reference database is configured.
func DefaultSnapshot() *Snapshot {
	return NewSnapshot(
		map[string]float64{
			"4202.21": 0.09,
			"6403.99": 0.10,
			"6110.20": 0.165,
			"9102.11": 0.06,
			"9503.00": 0,
			"9504.50": 0,
			"8525.89": 0.021,
		},
		[]AdditionalTariff{
			{OriginCountry: "CN", Rate: 0.10, Active: true},
			{OriginCountry: "VN", Rate: 0.05, Active: false},
		},
		[]WeightTier{
			{WeightBand: 0.5, EstimatedShipping: 12},
			{WeightBand: 1, EstimatedShipping: 18},
			{WeightBand: 2, EstimatedShipping: 25},
			{WeightBand: 3, EstimatedShipping: 32},
			{WeightBand: 5, EstimatedShipping: 40},
			{WeightBand: 10, EstimatedShipping: 62},
			{WeightBand: 20, EstimatedShipping: 95},
			{WeightBand: 30, EstimatedShipping: 128},
		},
	)
}

// StaticLoader serves a fixed snapshot, used when no reference database is configured.
type StaticLoader struct {
	Snapshot *Snapshot
}

// LoadSnapshot implements Loader.
func (l StaticLoader) LoadSnapshot(context.Context) (*Snapshot, error) {
	if l.Snapshot == nil {
		return DefaultSnapshot(), nil
	}
	return l.Snapshot, nil
}
