package series

import (
	"math"
	"sort"
)

// SMA computes a simple moving average aligned with the input. The window
// grows from the left edge, so every position gets a value:
// SMA([1,2,3,4,5], 3) = [1, 1.5, 2, 3, 4].
func SMA(values []float64, window int) []float64 {
	out := make([]float64, 0, len(values))
	sum := 0.0
	q := make([]float64, 0, window)
	for _, v := range values {
		q = append(q, v)
		sum += v
		if len(q) > window {
			sum -= q[0]
			q = q[1:]
		}
		out = append(out, sum/float64(len(q)))
	}
	return out
}

// AnomalyResult holds per-sample robust z-scores and threshold flags.
type AnomalyResult struct {
	Scores    []float64 `json:"scores"`
	Anomalies []bool    `json:"anomalies"`
}

// RobustZScore scores each sample against the median and MAD of a trailing
// window. A window longer than the series is clamped to max(8, n/2). The
// 0.6745 constant rescales MAD to be comparable to a standard deviation.
func RobustZScore(values []float64, window int, threshold float64) AnomalyResult {
	n := len(values)
	res := AnomalyResult{Scores: []float64{}, Anomalies: []bool{}}
	if n == 0 {
		return res
	}
	if window > n {
		window = n / 2
		if window < 8 {
			window = 8
		}
	}
	for i := 0; i < n; i++ {
		start := i - window
		if start < 0 {
			start = 0
		}
		seg := values[start : i+1]
		med := median(seg)
		dev := make([]float64, len(seg))
		for j, v := range seg {
			dev[j] = math.Abs(v - med)
		}
		mad := median(dev) + 1e-9
		s := 0.6745 * (values[i] - med) / mad
		res.Scores = append(res.Scores, s)
		res.Anomalies = append(res.Anomalies, math.Abs(s) > threshold)
	}
	return res
}

func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
