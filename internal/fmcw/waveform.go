package fmcw

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Waveform is a sampled transmit signal with its sample instants. Times and
// Samples always have the same length.
type Waveform struct {
	Times   []float64
	Samples []complex128
}

// Len returns the number of samples.
func (w Waveform) Len() int { return len(w.Samples) }

// GenerateChirp synthesizes a unit-amplitude linear FM chirp sweeping from fc
// to fc+B over T. The N = floor(fs*T) sample instants are evenly spaced over
// [0, T).
func GenerateChirp(cfg Config) (Waveform, error) {
	if err := cfg.Validate(); err != nil {
		return Waveform{}, fmt.Errorf("generate chirp: %w", err)
	}
	n := cfg.NumSamples()
	step := cfg.ChirpDuration / float64(n)
	w := Waveform{
		Times:   make([]float64, n),
		Samples: make([]complex128, n),
	}
	for i := 0; i < n; i++ {
		t := float64(i) * step
		w.Times[i] = t
		w.Samples[i] = cmplx.Rect(1, chirpPhase(cfg, t))
	}
	return w, nil
}

// chirpPhase is 2*pi*(fc*t + B/(2T)*t^2).
func chirpPhase(cfg Config, t float64) float64 {
	return 2 * math.Pi * (cfg.CarrierHz*t + cfg.Slope()/2*t*t)
}

var barkerCodes = map[int][]float64{
	7:  {1, 1, 1, -1, -1, 1, -1},
	13: {1, 1, 1, 1, 1, -1, -1, 1, 1, -1, 1, -1, 1},
}

// GenerateBarker returns a bi-phase Barker code with one sample per chip.
// Only lengths 7 and 13 are supported.
func GenerateBarker(length int) ([]complex128, error) {
	code, ok := barkerCodes[length]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported Barker length %d", ErrInvalidConfig, length)
	}
	out := make([]complex128, len(code))
	for i, c := range code {
		out[i] = complex(c, 0)
	}
	return out, nil
}
