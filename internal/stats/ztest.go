package stats

import "math"

// ZTest computes the pooled two-proportion z-statistic for a challenger
// against the control. Returns 0 when either side has no impressions or the
// pooled variance collapses; callers treat that as "no evidence".
func ZTest(challengerConv, challengerImpr, controlConv, controlImpr int) float64 {
	if challengerImpr == 0 || controlImpr == 0 {
		return 0
	}

	p1 := float64(challengerConv) / float64(challengerImpr)
	p2 := float64(controlConv) / float64(controlImpr)

	// Pooled proportion under the null hypothesis p1 = p2. Conversions can
	// exceed impressions, so clamp into [0, 1] to keep the variance defined.
	pooled := float64(challengerConv+controlConv) / float64(challengerImpr+controlImpr)
	if pooled > 1 {
		pooled = 1
	}

	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(challengerImpr) + 1/float64(controlImpr)))
	if se == 0 || math.IsNaN(se) {
		return 0
	}

	return (p1 - p2) / se
}

// PValue converts a z-statistic to a two-tailed p-value.
func PValue(z float64) float64 {
	return 2 * (1 - NormalCDF(math.Abs(z)))
}

// NormalCDF is the cumulative distribution function of the standard
// normal distribution.
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// ZScore returns the two-sided critical z for a confidence level,
// e.g. 0.95 -> 1.96.
func ZScore(confidence float64) float64 {
	return math.Sqrt2 * math.Erfinv(confidence)
}

// RelativeImprovement is the challenger's lift over the control rate,
// in percent. Defined as 0 when the control rate is 0.
func RelativeImprovement(challengerRate, controlRate float64) float64 {
	if controlRate == 0 {
		return 0
	}
	return (challengerRate - controlRate) / controlRate * 100
}
