package series

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA_GrowingWindow(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	want := []float64{1, 1.5, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("sma[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestSMA_WindowLargerThanInput(t *testing.T) {
	got := SMA([]float64{2, 4}, 10)
	if !almostEqual(got[0], 2) || !almostEqual(got[1], 3) {
		t.Fatalf("got %v", got)
	}
}

func TestSMA_Empty(t *testing.T) {
	if got := SMA(nil, 3); len(got) != 0 {
		t.Fatalf("expected empty output, got %v", got)
	}
}

func TestRobustZScore_FlagsSpike(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + float64(i%3) // mild noise
	}
	values[45] = 500 // obvious spike

	out := RobustZScore(values, 30, 3.5)
	if len(out.Scores) != len(values) || len(out.Anomalies) != len(values) {
		t.Fatalf("output lengths %d/%d, want %d", len(out.Scores), len(out.Anomalies), len(values))
	}
	if !out.Anomalies[45] {
		t.Fatalf("spike not flagged, score=%f", out.Scores[45])
	}
	flagged := 0
	for _, a := range out.Anomalies {
		if a {
			flagged++
		}
	}
	if flagged != 1 {
		t.Fatalf("expected exactly the spike flagged, got %d flags", flagged)
	}
}

func TestRobustZScore_ConstantSeriesHasNoAnomalies(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 7
	}
	out := RobustZScore(values, 10, 3.5)
	for i, a := range out.Anomalies {
		if a {
			t.Fatalf("constant series flagged at %d", i)
		}
	}
}

func TestRobustZScore_EmptyInput(t *testing.T) {
	out := RobustZScore(nil, 30, 3.5)
	if len(out.Scores) != 0 || len(out.Anomalies) != 0 {
		t.Fatalf("expected empty result, got %+v", out)
	}
}

func TestRobustZScore_WindowClamped(t *testing.T) {
	// window far larger than the series must not panic and must still score
	// every sample
	values := []float64{1, 2, 3, 4, 5, 6}
	out := RobustZScore(values, 1000, 3.5)
	if len(out.Scores) != len(values) {
		t.Fatalf("scores = %d, want %d", len(out.Scores), len(values))
	}
}

func TestMedian(t *testing.T) {
	if got := median([]float64{3, 1, 2}); !almostEqual(got, 2) {
		t.Fatalf("odd median = %f", got)
	}
	if got := median([]float64{4, 1, 3, 2}); !almostEqual(got, 2.5) {
		t.Fatalf("even median = %f", got)
	}
	if got := median(nil); got != 0 {
		t.Fatalf("empty median = %f", got)
	}
}
