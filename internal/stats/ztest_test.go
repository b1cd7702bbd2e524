package stats_test

import (
	"math"
	"testing"

	"github.com/splitlab/splitlab/internal/stats"
)

func TestZTest_ClearDifference(t *testing.T) {
	// Challenger: 10% conversion (100/1000)
	// Control: 5% conversion (50/1000)
	z := stats.ZTest(100, 1000, 50, 1000)

	if z < 3 {
		t.Errorf("expected large z for a clear difference, got %f", z)
	}
	if p := stats.PValue(z); p >= 0.05 {
		t.Errorf("expected p < 0.05, got %f", p)
	}
}

func TestZTest_EqualRates(t *testing.T) {
	z := stats.ZTest(50, 1000, 50, 1000)

	if z != 0 {
		t.Errorf("expected z = 0 for equal rates, got %f", z)
	}
	if p := stats.PValue(z); p != 1 {
		t.Errorf("expected p = 1 for equal rates, got %f", p)
	}
}

func TestZTest_ZeroImpressions(t *testing.T) {
	if z := stats.ZTest(0, 0, 0, 0); z != 0 {
		t.Errorf("expected 0 for no data, got %f", z)
	}
	if z := stats.ZTest(10, 100, 0, 0); z != 0 {
		t.Errorf("expected 0 when the control has no data, got %f", z)
	}
	if z := stats.ZTest(0, 0, 10, 100); z != 0 {
		t.Errorf("expected 0 when the challenger has no data, got %f", z)
	}
}

func TestZTest_CollapsedVariance(t *testing.T) {
	// Nobody converted on either side: pooled p = 0, se = 0.
	if z := stats.ZTest(0, 100, 0, 100); z != 0 {
		t.Errorf("expected 0 for collapsed variance, got %f", z)
	}
	// Everybody converted on both sides: pooled p = 1, se = 0.
	if z := stats.ZTest(100, 100, 100, 100); z != 0 {
		t.Errorf("expected 0 for collapsed variance, got %f", z)
	}
}

func TestZTest_PooledRateAboveOne(t *testing.T) {
	// Conversions can outnumber impressions. The pooled proportion then
	// exceeds 1; the statistic must stay defined.
	z := stats.ZTest(150, 100, 960, 1000)

	if math.IsNaN(z) || math.IsInf(z, 0) {
		t.Fatalf("expected a defined z, got %f", z)
	}
	if p := stats.PValue(z); math.IsNaN(p) || p < 0 || p > 1 {
		t.Errorf("expected a defined p-value in [0, 1], got %f", p)
	}
}

func TestNormalCDF(t *testing.T) {
	cases := []struct {
		x, want float64
	}{
		{0, 0.5},
		{1.96, 0.975},
		{-1.96, 0.025},
		{2.576, 0.995},
	}
	for _, c := range cases {
		got := stats.NormalCDF(c.x)
		if math.Abs(got-c.want) > 0.001 {
			t.Errorf("NormalCDF(%f) = %f, want ~%f", c.x, got, c.want)
		}
	}
}

func TestZScore(t *testing.T) {
	cases := []struct {
		confidence, want float64
	}{
		{0.90, 1.645},
		{0.95, 1.960},
		{0.99, 2.576},
	}
	for _, c := range cases {
		got := stats.ZScore(c.confidence)
		if math.Abs(got-c.want) > 0.005 {
			t.Errorf("ZScore(%f) = %f, want ~%f", c.confidence, got, c.want)
		}
	}
}

func TestRelativeImprovement(t *testing.T) {
	if got := stats.RelativeImprovement(0.08, 0.05); math.Abs(got-60) > 1e-9 {
		t.Errorf("expected 60%% lift, got %f", got)
	}
	if got := stats.RelativeImprovement(0.08, 0); got != 0 {
		t.Errorf("expected 0 lift against a zero control rate, got %f", got)
	}
	if got := stats.RelativeImprovement(0.04, 0.05); math.Abs(got+20) > 1e-9 {
		t.Errorf("expected -20%% lift, got %f", got)
	}
}

func TestWilsonInterval_Basic(t *testing.T) {
	lower, upper := stats.WilsonInterval(10, 100, 0.95)

	if lower <= 0 || upper >= 1 {
		t.Errorf("expected interval inside (0,1), got [%f, %f]", lower, upper)
	}
	if lower >= 0.10 || upper <= 0.10 {
		t.Errorf("expected interval to contain the observed rate 0.10, got [%f, %f]", lower, upper)
	}
}

func TestWilsonInterval_ZeroTrials(t *testing.T) {
	lower, upper := stats.WilsonInterval(0, 0, 0.95)

	if lower != 0 || upper != 0 {
		t.Errorf("expected [0, 0] for zero trials, got [%f, %f]", lower, upper)
	}
}

func TestWilsonInterval_SuccessesAboveTrials(t *testing.T) {
	lower, upper := stats.WilsonInterval(150, 100, 0.95)

	if math.IsNaN(lower) || math.IsNaN(upper) {
		t.Fatalf("expected a defined interval, got [%f, %f]", lower, upper)
	}
	if lower < 0 || upper > 1 || lower > upper {
		t.Errorf("expected a valid interval inside [0, 1], got [%f, %f]", lower, upper)
	}
}

func TestWilsonInterval_Clamped(t *testing.T) {
	lower, _ := stats.WilsonInterval(0, 5, 0.95)
	_, upper := stats.WilsonInterval(5, 5, 0.95)

	if lower != 0 {
		t.Errorf("expected lower bound clamped to 0, got %f", lower)
	}
	if upper != 1 {
		t.Errorf("expected upper bound clamped to 1, got %f", upper)
	}
}
