package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
)

var (
	// ErrInvalidInput reports an argument outside the domain of a transform.
	ErrInvalidInput = errors.New("dsp: invalid input")
	// ErrLengthMismatch reports sequences that must share a length but do not.
	ErrLengthMismatch = errors.New("dsp: length mismatch")
)

// Spectrum is a frequency-domain sequence with the bin frequencies (Hz)
// index-aligned to Bins.
type Spectrum struct {
	Bins  []complex128
	Freqs []float64
}

// Len returns the number of bins.
func (s Spectrum) Len() int { return len(s.Bins) }

// Magnitude returns |Bins[k]| for every bin.
func (s Spectrum) Magnitude() []float64 {
	return Magnitudes(s.Bins)
}

// FFT1D transforms signal with no window and no zero padding. The k-th
// frequency follows the usual FFT layout: DC first, positive frequencies,
// then negative frequencies.
func FFT1D(signal []complex128, fs float64) (Spectrum, error) {
	if !(fs > 0) || math.IsInf(fs, 0) {
		return Spectrum{}, fmt.Errorf("%w: sample rate %g", ErrInvalidInput, fs)
	}
	return Spectrum{
		Bins:  defaultPlans.Transform(signal),
		Freqs: FFTFreq(len(signal), fs),
	}, nil
}

// FFTFreq returns the n bin frequencies of an n-point DFT sampled at fs.
func FFTFreq(n int, fs float64) []float64 {
	if n <= 0 {
		return []float64{}
	}
	freqs := make([]float64, n)
	for i := range freqs {
		freqs[i] = defaultPlans.Freq(n, i) * fs
	}
	return freqs
}

// FFT2D applies the DFT along every row and then along every column of m.
// All rows must have the same length.
func FFT2D(m [][]complex128) ([][]complex128, error) {
	rows := len(m)
	if rows == 0 {
		return [][]complex128{}, nil
	}
	cols := len(m[0])
	for i, row := range m {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrLengthMismatch, i, len(row), cols)
		}
	}

	out := make([][]complex128, rows)
	for i, row := range m {
		out[i] = defaultPlans.Transform(row)
	}
	if cols == 0 {
		return out, nil
	}

	column := make([]complex128, rows)
	for j := 0; j < cols; j++ {
		for i := range out {
			column[i] = out[i][j]
		}
		transformed := defaultPlans.Transform(column)
		for i := range out {
			out[i][j] = transformed[i]
		}
	}
	return out, nil
}

// FFTShift returns a copy of data rotated so that DC is centered.
func FFTShift(data []complex128) []complex128 {
	n := len(data)
	if n == 0 {
		return []complex128{}
	}
	half := n / 2
	shifted := make([]complex128, 0, n)
	shifted = append(shifted, data[half:]...)
	return append(shifted, data[:half]...)
}

// FFTShiftFreqs rotates a frequency axis the same way FFTShift rotates bins.
func FFTShiftFreqs(freqs []float64) []float64 {
	n := len(freqs)
	if n == 0 {
		return []float64{}
	}
	half := n / 2
	shifted := make([]float64, 0, n)
	shifted = append(shifted, freqs[half:]...)
	return append(shifted, freqs[:half]...)
}

// Magnitudes returns |x| for every element of bins.
func Magnitudes(bins []complex128) []float64 {
	out := make([]float64, len(bins))
	for i, v := range bins {
		out[i] = cmplx.Abs(v)
	}
	return out
}
