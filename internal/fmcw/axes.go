package fmcw

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/rjboer/GoFMCW/internal/dsp"
)

// BeatToRange converts a beat frequency to target range, R = |f|*c/(2*slope).
// Only meaningful for static targets; Doppler shifts the beat tone.
func BeatToRange(beatHz float64, cfg Config) float64 {
	return math.Abs(beatHz) * SpeedOfLight / (2 * cfg.Slope())
}

// DopplerToVelocity inverts Target.DopplerShift.
func DopplerToVelocity(dopplerHz float64, cfg Config) float64 {
	return dopplerHz * SpeedOfLight / (2 * cfg.CarrierHz)
}

// Detection is one CFAR hit on a beat spectrum.
type Detection struct {
	Bin       int     `json:"bin"`
	FreqHz    float64 `json:"freqHz"`
	RangeM    float64 `json:"rangeM"`
	Magnitude float64 `json:"magnitude"`
}

func (d Detection) String() string {
	return fmt.Sprintf("bin=%d f=%.0fHz R=%.2fm", d.Bin, d.FreqHz, d.RangeM)
}

// Detections turns a CFAR mask into range estimates, ordered by bin. RangeM
// stays zero when cfg has no sweep.
func Detections(spec dsp.Spectrum, mask []bool, cfg Config) []Detection {
	hasSweep := cfg.ChirpDuration > 0 && cfg.BandwidthHz != 0
	var out []Detection
	for i, hit := range mask {
		if !hit || i >= spec.Len() {
			continue
		}
		f := spec.Freqs[i]
		d := Detection{
			Bin:       i,
			FreqHz:    f,
			Magnitude: cmplx.Abs(spec.Bins[i]),
		}
		if hasSweep {
			d.RangeM = BeatToRange(f, cfg)
		}
		out = append(out, d)
	}
	return out
}

// DopplerFilter transforms sig and keeps only the bins within one bin width
// of the Doppler shift of a target moving at velocity; every other bin is
// zeroed. Bins are in FFT order with signed frequencies, so receding targets
// select the negative half of the spectrum.
func DopplerFilter(sig []complex128, cfg Config, velocity float64) ([]complex128, error) {
	if !(cfg.SampleRateHz > 0) || !(cfg.CarrierHz > 0) {
		return nil, fmt.Errorf("doppler filter: %w: need positive sample rate and carrier, got fs=%g fc=%g",
			ErrInvalidConfig, cfg.SampleRateHz, cfg.CarrierHz)
	}
	spec, err := dsp.FFT1D(sig, cfg.SampleRateHz)
	if err != nil {
		return nil, fmt.Errorf("doppler filter: %w", err)
	}
	fd := Target{Velocity: velocity}.DopplerShift(cfg.CarrierHz)
	width := cfg.SampleRateHz / float64(spec.Len())
	out := make([]complex128, spec.Len())
	for i, f := range spec.Freqs {
		if math.Abs(f-fd) < width {
			out[i] = spec.Bins[i]
		}
	}
	return out, nil
}
