package stats

import (
	"errors"

	"github.com/splitlab/splitlab/internal/store"
)

// ErrNoControl is returned when a test has no control variant to compare
// against. Creation validation makes this unreachable for persisted tests;
// it is still checked defensively.
var ErrNoControl = errors.New("no control variant")

// Result is the outcome of one significance pass over a test.
type Result struct {
	TestID           string          `json:"testId"`
	HasWinner        bool            `json:"hasWinner"`
	WinningVariantID string          `json:"winningVariantId,omitempty"`
	ConfidenceLevel  float64         `json:"confidenceLevel"`
	NeedsMoreData    bool            `json:"needsMoreData"`
	Variants         []VariantResult `json:"variants"`
}

// VariantResult contains statistics for a single variant. PValue and
// RelativeImprovement are meaningful for challengers only; the control
// carries its counts, rate, and interval.
type VariantResult struct {
	VariantID           string  `json:"variantId"`
	Name                string  `json:"name"`
	IsControl           bool    `json:"isControl"`
	Impressions         int     `json:"impressions"`
	Conversions         int     `json:"conversions"`
	ConversionRate      float64 `json:"conversionRate"`
	PValue              float64 `json:"pValue"`
	RelativeImprovement float64 `json:"relativeImprovement"`
	Significant         bool    `json:"significant"`
	CILower             float64 `json:"ciLower"`
	CIUpper             float64 `json:"ciUpper"`
}

// Evaluate runs the two-proportion z-test for every challenger against the
// control. It is a pure function of the variant counts: calling it twice
// with no new events yields identical results.
//
// A challenger is significant when its two-tailed p-value beats
// 1 - confidenceLevel and its lift over the control is positive. Among
// significant challengers the winner is the one with the highest conversion
// rate, ties broken by the lower variant id. Variants where either side has
// zero impressions are skipped rather than fed into the math.
func Evaluate(test *store.Test) (*Result, error) {
	var control *store.Variant
	for i := range test.Variants {
		if test.Variants[i].IsControl {
			control = &test.Variants[i]
			break
		}
	}
	if control == nil {
		return nil, ErrNoControl
	}

	result := &Result{
		TestID:          test.ID,
		ConfidenceLevel: test.ConfidenceLevel,
	}
	alpha := 1 - test.ConfidenceLevel

	for i := range test.Variants {
		v := &test.Variants[i]

		vr := VariantResult{
			VariantID:      v.ID,
			Name:           v.Name,
			IsControl:      v.IsControl,
			Impressions:    v.Impressions,
			Conversions:    v.Conversions,
			ConversionRate: rate(v.Conversions, v.Impressions),
			PValue:         1,
		}
		vr.CILower, vr.CIUpper = WilsonInterval(v.Conversions, v.Impressions, test.ConfidenceLevel)

		if v.Impressions < test.MinSampleSize {
			result.NeedsMoreData = true
		}

		if !v.IsControl && v.Impressions > 0 && control.Impressions > 0 {
			z := ZTest(v.Conversions, v.Impressions, control.Conversions, control.Impressions)
			vr.PValue = PValue(z)
			vr.RelativeImprovement = RelativeImprovement(vr.ConversionRate, rate(control.Conversions, control.Impressions))
			vr.Significant = vr.PValue < alpha && vr.RelativeImprovement > 0
		}

		result.Variants = append(result.Variants, vr)
	}

	var winner *VariantResult
	for i := range result.Variants {
		vr := &result.Variants[i]
		if !vr.Significant {
			continue
		}
		if winner == nil ||
			vr.ConversionRate > winner.ConversionRate ||
			(vr.ConversionRate == winner.ConversionRate && vr.VariantID < winner.VariantID) {
			winner = vr
		}
	}
	if winner != nil {
		result.HasWinner = true
		result.WinningVariantID = winner.VariantID
	}

	return result, nil
}

// rate never divides by zero; a variant with no impressions has rate 0.
// Conversions above impressions are accepted (adversarial input can convert
// without a recorded impression), so the rate may exceed 1.
func rate(conversions, impressions int) float64 {
	if impressions == 0 {
		return 0
	}
	return float64(conversions) / float64(impressions)
}
