package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Estimator selects how a CFAR window turns training cells into a noise level.
type Estimator int

const (
	// EstimatorPairSum averages the element-wise sum of the leading and
	// trailing training windows. The result is twice the classical cell
	// average; it is the default so existing threshold factors keep their
	// meaning.
	EstimatorPairSum Estimator = iota
	// EstimatorCellAverage is the textbook CA-CFAR mean over all 2*Training
	// cells.
	EstimatorCellAverage
)

func (e Estimator) String() string {
	switch e {
	case EstimatorPairSum:
		return "pair-sum"
	case EstimatorCellAverage:
		return "cell-average"
	default:
		return "unknown"
	}
}

// ParseEstimator converts a name produced by Estimator.String.
func ParseEstimator(s string) (Estimator, error) {
	switch s {
	case "pair-sum", "":
		return EstimatorPairSum, nil
	case "cell-average":
		return EstimatorCellAverage, nil
	default:
		return 0, fmt.Errorf("%w: unsupported CFAR estimator %q", ErrInvalidInput, s)
	}
}

// CFAR is a sliding-window constant false alarm rate detector.
//
// For a cell under test i the window is
//
//	[i-Guard-Training, i-Guard)  training (leading)
//	[i-Guard, i+Guard)           guard, ignored
//	[i+Guard, i+Guard+Training)  training (trailing)
//
// Only cells in [Guard+Training, n-Guard-Training) are evaluated; all others
// are reported as not detected.
type CFAR struct {
	Guard     int
	Training  int
	Factor    float64
	Estimator Estimator
}

// Detect returns a mask the length of bins with true where |bins[i]| exceeds
// the local threshold.
func (c CFAR) Detect(bins []complex128) []bool {
	return c.DetectMagnitudes(Magnitudes(bins))
}

// DetectMagnitudes is Detect for precomputed magnitudes.
func (c CFAR) DetectMagnitudes(mag []float64) []bool {
	mask := make([]bool, len(mag))
	thresholds := c.thresholds(mag)
	for i, th := range thresholds {
		if math.IsNaN(th) {
			continue
		}
		mask[i] = mag[i] > th
	}
	return mask
}

// Thresholds returns the per-bin threshold. Bins outside the evaluable range
// hold NaN.
func (c CFAR) Thresholds(bins []complex128) []float64 {
	return c.thresholds(Magnitudes(bins))
}

func (c CFAR) thresholds(mag []float64) []float64 {
	n := len(mag)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if c.Guard < 0 || c.Training <= 0 {
		return out
	}
	// bound both before adding so span cannot overflow
	if c.Guard > n || c.Training > n {
		return out
	}

	span := c.Guard + c.Training
	pair := make([]float64, c.Training)
	for i := span; i < n-span; i++ {
		lead := mag[i-span : i-c.Guard]
		trail := mag[i+c.Guard : i+span]

		var noise float64
		switch c.Estimator {
		case EstimatorCellAverage:
			noise = (floats.Sum(lead) + floats.Sum(trail)) / float64(2*c.Training)
		default:
			floats.AddTo(pair, lead, trail)
			noise = stat.Mean(pair, nil)
		}
		out[i] = c.Factor * noise
	}
	return out
}

// ThresholdFactorForPFA derives a threshold multiplier from a desired
// probability of false alarm as pfa^(-1/training) - 1.
func ThresholdFactorForPFA(pfa float64, training int) (float64, error) {
	if !(pfa > 0 && pfa < 1) {
		return 0, fmt.Errorf("%w: pfa %g outside (0,1)", ErrInvalidInput, pfa)
	}
	if training <= 0 {
		return 0, fmt.Errorf("%w: training cells %d", ErrInvalidInput, training)
	}
	return math.Pow(pfa, -1/float64(training)) - 1, nil
}

// DetectedIndices lists the true positions of mask in ascending order.
func DetectedIndices(mask []bool) []int {
	var out []int
	for i, hit := range mask {
		if hit {
			out = append(out, i)
		}
	}
	return out
}
