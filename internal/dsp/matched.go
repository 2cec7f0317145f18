package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// MatchedFilter correlates signal against reference:
//
//	out[i] = sum_{j=0..min(i, len(reference)-1)} signal[i-j] * conj(reference[j])
//
// The output has the length of signal.
func MatchedFilter(signal, reference []complex128) ([]complex128, error) {
	if len(reference) == 0 {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidInput)
	}
	out := make([]complex128, len(signal))
	for i := range signal {
		var acc complex128
		for j := 0; j < len(reference) && j <= i; j++ {
			acc += signal[i-j] * cmplx.Conj(reference[j])
		}
		out[i] = acc
	}
	return out, nil
}

// Stats summarises a complex signal.
type Stats struct {
	MeanPower     float64
	PeakAmplitude float64
	PeakIndex     int
}

// SignalStats computes the mean power and the largest magnitude of signal.
// An empty signal yields zero Stats with PeakIndex -1.
func SignalStats(signal []complex128) Stats {
	if len(signal) == 0 {
		return Stats{PeakIndex: -1}
	}
	power := make([]float64, len(signal))
	st := Stats{PeakIndex: 0}
	for i, v := range signal {
		mag := cmplx.Abs(v)
		power[i] = mag * mag
		if mag > st.PeakAmplitude {
			st.PeakAmplitude = mag
			st.PeakIndex = i
		}
	}
	st.MeanPower = stat.Mean(power, nil)
	return st
}

// MeanPower returns mean(|x|^2), or 0 for an empty signal.
func MeanPower(signal []complex128) float64 {
	return SignalStats(signal).MeanPower
}

// MagnitudeDB converts bins to 20*log10(|x|). Zero bins map to -Inf.
func MagnitudeDB(bins []complex128) []float64 {
	out := make([]float64, len(bins))
	for i, v := range bins {
		mag := cmplx.Abs(v)
		if mag == 0 {
			out[i] = math.Inf(-1)
			continue
		}
		out[i] = 20 * math.Log10(mag)
	}
	return out
}
