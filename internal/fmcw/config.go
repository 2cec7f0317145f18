// Package fmcw models the analog front end of a frequency-modulated
// continuous-wave radar: chirp synthesis, target echoes, dechirping and
// Range-Doppler assembly. Every stage takes its inputs by value and returns a
// freshly allocated result.
package fmcw

import (
	"errors"
	"fmt"
	"math"

	"github.com/rjboer/GoFMCW/internal/dsp"
)

// SpeedOfLight is the propagation speed used for delay and Doppler (m/s).
const SpeedOfLight = 3e8

var (
	// ErrInvalidConfig reports non-positive or degenerate radar parameters.
	ErrInvalidConfig = errors.New("fmcw: invalid config")
	// ErrLengthMismatch reports arrays of different lengths crossing a stage
	// boundary. It is the same sentinel the dsp package returns.
	ErrLengthMismatch = dsp.ErrLengthMismatch
)

// Config holds the chirp parameters. It is a plain value: copy it, never
// share a pointer to it between stages.
type Config struct {
	CarrierHz     float64 // fc
	BandwidthHz   float64 // B
	ChirpDuration float64 // T, seconds
	SampleRateHz  float64 // fs
}

// DefaultConfig returns a 24 GHz automotive-style chirp.
func DefaultConfig() Config {
	return Config{
		CarrierHz:     24e9,
		BandwidthHz:   250e6,
		ChirpDuration: 50e-6,
		SampleRateHz:  10e6,
	}
}

// Validate checks that every field is finite and strictly positive and that
// the chirp holds at least one sample.
func (c Config) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"carrier frequency", c.CarrierHz},
		{"bandwidth", c.BandwidthHz},
		{"chirp duration", c.ChirpDuration},
		{"sample rate", c.SampleRateHz},
	}
	for _, f := range fields {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be positive, got %g", ErrInvalidConfig, f.name, f.v)
		}
	}
	if n := c.SampleRateHz * c.ChirpDuration; n > MaxSamples {
		return fmt.Errorf("%w: fs*T = %g exceeds sample cap %d", ErrInvalidConfig, n, MaxSamples)
	}
	if c.NumSamples() == 0 {
		return fmt.Errorf("%w: fs*T = %g yields no samples", ErrInvalidConfig, c.SampleRateHz*c.ChirpDuration)
	}
	return nil
}

// MaxSamples caps the chirp length.
const MaxSamples = math.MaxInt32

// NumSamples is floor(fs*T), or zero when that is not in (0, MaxSamples].
func (c Config) NumSamples() int {
	n := math.Floor(c.SampleRateHz * c.ChirpDuration)
	if !(n > 0) || n > MaxSamples {
		return 0
	}
	return int(n)
}

// Slope is the chirp rate B/T in Hz/s.
func (c Config) Slope() float64 {
	return c.BandwidthHz / c.ChirpDuration
}

// Wavelength is c/fc.
func (c Config) Wavelength() float64 {
	return SpeedOfLight / c.CarrierHz
}

// RangeResolution is c/(2B).
func (c Config) RangeResolution() float64 {
	return SpeedOfLight / (2 * c.BandwidthHz)
}

// MaxRange is the range whose beat frequency equals the Nyquist rate fs/2.
func (c Config) MaxRange() float64 {
	return BeatToRange(c.SampleRateHz/2, c)
}

// Target is a point reflector. Range is in meters, Velocity is the radial
// velocity in m/s (positive means closing).
type Target struct {
	Range    float64
	Velocity float64
}

// Delay is the round-trip delay 2R/c.
func (t Target) Delay() float64 {
	return 2 * t.Range / SpeedOfLight
}

// DopplerShift is 2*v*fc/c for the given carrier.
func (t Target) DopplerShift(carrierHz float64) float64 {
	return 2 * t.Velocity * carrierHz / SpeedOfLight
}

func (t Target) String() string {
	return fmt.Sprintf("R=%gm v=%gm/s", t.Range, t.Velocity)
}
