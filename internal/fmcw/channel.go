package fmcw

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"

	"github.com/rjboer/GoFMCW/internal/dsp"
)

// SimulateReceived evaluates the echo of target analytically: the chirp phase
// law at the delayed instant t-tau plus a Doppler term 2*pi*f_d*t. Negative
// ranges are accepted and simply advance the echo.
func SimulateReceived(w Waveform, cfg Config, target Target) ([]complex128, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulate received: %w", err)
	}
	if len(w.Times) != len(w.Samples) {
		return nil, fmt.Errorf("simulate received: %w: %d timestamps for %d samples", ErrLengthMismatch, len(w.Times), len(w.Samples))
	}
	tau := target.Delay()
	fd := target.DopplerShift(cfg.CarrierHz)
	rx := make([]complex128, len(w.Times))
	for i, t := range w.Times {
		phase := chirpPhase(cfg, t-tau) + 2*math.Pi*fd*t
		rx[i] = cmplx.Rect(1, phase)
	}
	return rx, nil
}

// NormSource draws standard normal variates. *math/rand.Rand satisfies it.
type NormSource interface {
	NormFloat64() float64
}

// Channel adds random impairments drawn from an injected source. A Channel
// is not safe for concurrent use unless its source is.
type Channel struct {
	rng NormSource
}

// NewChannel wraps src.
func NewChannel(src NormSource) *Channel {
	if src == nil {
		src = rand.New(rand.NewSource(1))
	}
	return &Channel{rng: src}
}

// NewSeededChannel returns a deterministic channel.
func NewSeededChannel(seed int64) *Channel {
	return NewChannel(rand.New(rand.NewSource(seed)))
}

// AddNoise returns signal plus complex white Gaussian noise at snrDB relative
// to the mean signal power.
func (c *Channel) AddNoise(signal []complex128, snrDB float64) ([]complex128, error) {
	if math.IsNaN(snrDB) {
		return nil, fmt.Errorf("add noise: %w: snr is NaN", ErrInvalidConfig)
	}
	noisePower := dsp.MeanPower(signal) / math.Pow(10, snrDB/10)
	return c.addGaussian(signal, noisePower), nil
}

// AddClutter returns signal plus complex Gaussian clutter of the given total
// power. The draw is independent of any noise already added.
func (c *Channel) AddClutter(signal []complex128, power float64) ([]complex128, error) {
	if !(power >= 0) || math.IsInf(power, 0) {
		return nil, fmt.Errorf("add clutter: %w: power must be non-negative, got %g", ErrInvalidConfig, power)
	}
	return c.addGaussian(signal, power), nil
}

// ClutterPowerFromCNR converts a clutter-to-noise ratio in dB, taken relative
// to the mean power of signal, into an absolute clutter power.
func ClutterPowerFromCNR(signal []complex128, cnrDB float64) float64 {
	return dsp.MeanPower(signal) * math.Pow(10, cnrDB/10)
}

// addGaussian splits power evenly between the I and Q components.
func (c *Channel) addGaussian(signal []complex128, power float64) []complex128 {
	out := make([]complex128, len(signal))
	sigma := math.Sqrt(power / 2)
	for i, s := range signal {
		out[i] = s + complex(sigma*c.rng.NormFloat64(), sigma*c.rng.NormFloat64())
	}
	return out
}
