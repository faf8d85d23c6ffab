package profitability

import (
	"fmt"
	"strings"

	"github.com/odyssey-erp/landedcost/internal/shared"
)

// Mode names a pricing mode such as duty-paid or duty-unpaid.
type Mode string

const (
	// ModeDDP is delivered duty paid: the seller remits duties and VAT.
	ModeDDP Mode = "DDP"
	// ModeDDU is delivered duty unpaid: the buyer pays on arrival.
	ModeDDU Mode = "DDU"
)

// ModeInput is one mode's profit figures for the same cost.
type ModeInput struct {
	Mode   Mode    `json:"mode" validate:"required"`
	Profit float64 `json:"profit"`
	Margin float64 `json:"margin"`
}

// ModeVerdict pairs a mode with its verdict.
type ModeVerdict struct {
	Mode    Mode    `json:"mode"`
	Verdict Verdict `json:"verdict"`
}

// DualModeVerdict reports viability across modes. Viable is the OR of every
// mode's CanList; PreferredMode is the first listable mode in input order.
type DualModeVerdict struct {
	Viable         bool          `json:"viable"`
	PreferredMode  Mode          `json:"preferred_mode,omitempty"`
	Modes          []ModeVerdict `json:"modes"`
	Recommendation string        `json:"recommendation"`
}

// Mode returns the verdict recorded for m.
func (d DualModeVerdict) Mode(m Mode) (Verdict, bool) {
	for _, mv := range d.Modes {
		if mv.Mode == m {
			return mv.Verdict, true
		}
	}
	return Verdict{}, false
}

// CheckDualMode runs the gate once per mode. Callers list modes in
// preference order.
func (g *Gate) CheckDualMode(cost float64, modes ...ModeInput) (DualModeVerdict, error) {
	if len(modes) == 0 {
		return DualModeVerdict{}, shared.NewValidationError("profitability: dual mode",
			shared.FieldError{Field: "modes", Tag: "required", Message: "is required"})
	}
	out := DualModeVerdict{Modes: make([]ModeVerdict, 0, len(modes))}
	for _, in := range modes {
		if err := shared.ValidateStruct("profitability: dual mode", in); err != nil {
			return DualModeVerdict{}, err
		}
		v, err := g.Check(cost, in.Profit, in.Margin)
		if err != nil {
			return DualModeVerdict{}, err
		}
		out.Modes = append(out.Modes, ModeVerdict{Mode: in.Mode, Verdict: v})
		if v.CanList {
			out.Viable = true
			if out.PreferredMode == "" {
				out.PreferredMode = in.Mode
			}
		}
	}
	out.Recommendation = dualRecommendation(out)
	return out, nil
}

func dualRecommendation(d DualModeVerdict) string {
	if !d.Viable {
		return "reject: no pricing mode clears the profit floors"
	}
	var others []string
	for _, mv := range d.Modes {
		if mv.Mode != d.PreferredMode && mv.Verdict.CanList {
			others = append(others, string(mv.Mode))
		}
	}
	if len(others) == 0 {
		return fmt.Sprintf("list as %s; it is the only viable mode", d.PreferredMode)
	}
	return fmt.Sprintf("list as %s; %s also viable", d.PreferredMode, strings.Join(others, ", "))
}
