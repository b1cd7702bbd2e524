package stats_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/splitlab/splitlab/internal/stats"
	"github.com/splitlab/splitlab/internal/store"
)

func makeTest(confidence float64, minSample int, variants ...store.Variant) *store.Test {
	for i := range variants {
		variants[i].TestID = "test-1"
		if variants[i].Impressions > 0 {
			variants[i].ConversionRate = float64(variants[i].Conversions) / float64(variants[i].Impressions)
		}
	}
	return &store.Test{
		ID:              "test-1",
		Name:            "hero",
		Status:          store.StatusRunning,
		ConfidenceLevel: confidence,
		MinSampleSize:   minSample,
		Variants:        variants,
	}
}

func TestEvaluate_ClearWinner(t *testing.T) {
	test := makeTest(0.95, 100,
		store.Variant{ID: "control", Name: "Control", IsControl: true, Impressions: 1000, Conversions: 50},
		store.Variant{ID: "challenger", Name: "Challenger", Impressions: 1000, Conversions: 80},
	)

	result, err := stats.Evaluate(test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.HasWinner {
		t.Fatal("expected a winner")
	}
	if result.WinningVariantID != "challenger" {
		t.Errorf("expected challenger to win, got %s", result.WinningVariantID)
	}

	var challenger stats.VariantResult
	for _, v := range result.Variants {
		if v.VariantID == "challenger" {
			challenger = v
		}
	}
	if challenger.PValue >= 0.05 {
		t.Errorf("expected p < 0.05, got %f", challenger.PValue)
	}
	if math.Abs(challenger.RelativeImprovement-60) > 1e-9 {
		t.Errorf("expected 60%% improvement, got %f", challenger.RelativeImprovement)
	}
	if result.NeedsMoreData {
		t.Error("both variants are past the minimum sample size")
	}
}

func TestEvaluate_InsufficientEvidence(t *testing.T) {
	test := makeTest(0.95, 100,
		store.Variant{ID: "control", Name: "Control", IsControl: true, Impressions: 1000, Conversions: 50},
		store.Variant{ID: "challenger", Name: "Challenger", Impressions: 10, Conversions: 1},
	)

	result, err := stats.Evaluate(test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.HasWinner {
		t.Error("expected no winner on 10 impressions")
	}
	if !result.NeedsMoreData {
		t.Error("expected needsMoreData for a variant below the minimum sample size")
	}
}

func TestEvaluate_MinSampleSizeDoesNotGateTheMath(t *testing.T) {
	// A significant result with fewer impressions than minSampleSize still
	// declares a winner; the flag is informational.
	test := makeTest(0.95, 10000,
		store.Variant{ID: "control", Name: "Control", IsControl: true, Impressions: 2000, Conversions: 100},
		store.Variant{ID: "challenger", Name: "Challenger", Impressions: 2000, Conversions: 200},
	)

	result, err := stats.Evaluate(test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.HasWinner {
		t.Error("expected a winner despite being under the minimum sample size")
	}
	if !result.NeedsMoreData {
		t.Error("expected needsMoreData to still be reported")
	}
}

func TestEvaluate_TieBreaksOnLowerVariantID(t *testing.T) {
	test := makeTest(0.95, 100,
		store.Variant{ID: "control", Name: "Control", IsControl: true, Impressions: 1000, Conversions: 50},
		store.Variant{ID: "bbb", Name: "B", Impressions: 1000, Conversions: 100},
		store.Variant{ID: "aaa", Name: "A", Impressions: 1000, Conversions: 100},
	)

	result, err := stats.Evaluate(test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.HasWinner {
		t.Fatal("expected a winner")
	}
	if result.WinningVariantID != "aaa" {
		t.Errorf("identical stats must break ties to the lower id, got %s", result.WinningVariantID)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	test := makeTest(0.95, 100,
		store.Variant{ID: "control", Name: "Control", IsControl: true, Impressions: 1000, Conversions: 50},
		store.Variant{ID: "challenger", Name: "Challenger", Impressions: 1000, Conversions: 80},
	)

	first, err := stats.Evaluate(test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := stats.Evaluate(test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("evaluating twice with no new events must yield identical results")
	}
}

func TestEvaluate_NoControl(t *testing.T) {
	test := makeTest(0.95, 100,
		store.Variant{ID: "a", Name: "A", Impressions: 100, Conversions: 10},
		store.Variant{ID: "b", Name: "B", Impressions: 100, Conversions: 20},
	)

	_, err := stats.Evaluate(test)
	if err != stats.ErrNoControl {
		t.Errorf("expected ErrNoControl, got %v", err)
	}
}

func TestEvaluate_ZeroImpressionsSkipped(t *testing.T) {
	test := makeTest(0.95, 100,
		store.Variant{ID: "control", Name: "Control", IsControl: true, Impressions: 0, Conversions: 0},
		store.Variant{ID: "challenger", Name: "Challenger", Impressions: 500, Conversions: 100},
	)

	result, err := stats.Evaluate(test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.HasWinner {
		t.Error("a challenger must not win against a control with no impressions")
	}
	for _, v := range result.Variants {
		if math.IsNaN(v.ConversionRate) || math.IsNaN(v.PValue) {
			t.Errorf("NaN leaked into variant %s", v.VariantID)
		}
	}
}

func TestEvaluate_ConversionsAboveImpressionsAccepted(t *testing.T) {
	// Adversarial input: conversions without recorded impressions. The rate
	// may exceed 1; the math must stay defined.
	test := makeTest(0.95, 100,
		store.Variant{ID: "control", Name: "Control", IsControl: true, Impressions: 1000, Conversions: 50},
		store.Variant{ID: "challenger", Name: "Challenger", Impressions: 100, Conversions: 150},
	)

	result, err := stats.Evaluate(test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var challenger stats.VariantResult
	for _, v := range result.Variants {
		if v.VariantID == "challenger" {
			challenger = v
		}
	}
	if challenger.ConversionRate != 1.5 {
		t.Errorf("expected rate 1.5, got %f", challenger.ConversionRate)
	}
	if math.IsNaN(challenger.PValue) || math.IsInf(challenger.PValue, 0) {
		t.Errorf("p-value must stay defined, got %f", challenger.PValue)
	}
	for _, v := range result.Variants {
		if math.IsNaN(v.CILower) || math.IsNaN(v.CIUpper) {
			t.Errorf("confidence interval for %s must stay defined, got [%f, %f]", v.VariantID, v.CILower, v.CIUpper)
		}
	}
}

func TestEvaluate_PooledRateAboveOneStaysDefined(t *testing.T) {
	// Both sides over-converted, so the pooled proportion exceeds 1.
	test := makeTest(0.95, 100,
		store.Variant{ID: "control", Name: "Control", IsControl: true, Impressions: 100, Conversions: 150},
		store.Variant{ID: "challenger", Name: "Challenger", Impressions: 100, Conversions: 160},
	)

	result, err := stats.Evaluate(test)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, v := range result.Variants {
		if math.IsNaN(v.PValue) || math.IsInf(v.PValue, 0) {
			t.Errorf("p-value for %s must stay defined, got %f", v.VariantID, v.PValue)
		}
		if math.IsNaN(v.CILower) || math.IsNaN(v.CIUpper) {
			t.Errorf("confidence interval for %s must stay defined, got [%f, %f]", v.VariantID, v.CILower, v.CIUpper)
		}
	}
	if result.HasWinner {
		t.Error("a degenerate pooled rate carries no evidence, expected no winner")
	}
}
