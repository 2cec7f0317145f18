package fmcw

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/rjboer/GoFMCW/internal/dsp"
	"github.com/rjboer/GoFMCW/internal/logging"
)

// PulseEcho places code inside a frame of the given length, delayed by the
// target's round-trip time rounded to whole samples at cfg.SampleRateHz.
func PulseEcho(code []complex128, cfg Config, target Target, frame int) ([]complex128, int, error) {
	if len(code) == 0 {
		return nil, 0, fmt.Errorf("%w: empty pulse code", ErrInvalidConfig)
	}
	if !(cfg.SampleRateHz > 0) {
		return nil, 0, fmt.Errorf("%w: sample rate must be positive, got %g", ErrInvalidConfig, cfg.SampleRateHz)
	}
	delay := int(math.Round(target.Delay() * cfg.SampleRateHz))
	if delay < 0 || delay+len(code) > frame {
		return nil, 0, fmt.Errorf("%w: echo at sample %d does not fit a %d sample frame", ErrInvalidConfig, delay, frame)
	}
	echo := make([]complex128, frame)
	copy(echo[delay:], code)
	return echo, delay, nil
}

// CompressPulse matched-filters rx against code. A clean echo starting at
// sample d peaks at d+len(code)-1 with amplitude equal to the code energy.
func CompressPulse(rx, code []complex128) ([]complex128, error) {
	// MatchedFilter convolves, so the time-reversed code turns it into a
	// correlation against code.
	ref := make([]complex128, len(code))
	for i, c := range code {
		ref[len(code)-1-i] = c
	}
	return dsp.MatchedFilter(rx, ref)
}

// PulseResult is the outcome of a Barker pulse compression run.
type PulseResult struct {
	RunID        string
	Target       Target
	Code         []complex128
	Echo         []complex128
	Compressed   []complex128
	Stats        dsp.Stats
	DelaySamples int
	// RangeM is the range recovered from the compressed peak.
	RangeM float64
}

// ProcessPulse transmits a Barker code of the given length, receives its
// echo in a frame with the Processor's impairments and pulse-compresses it.
func (p *Processor) ProcessPulse(target Target, barkerLen, frame int) (PulseResult, error) {
	runID := uuid.NewString()
	log := p.logger.With(logging.F("run_id", runID), logging.F("target", target.String()))

	code, err := GenerateBarker(barkerLen)
	if err != nil {
		return PulseResult{}, fmt.Errorf("process pulse: %w", err)
	}
	rx, delay, err := PulseEcho(code, p.cfg, target, frame)
	if err != nil {
		return PulseResult{}, fmt.Errorf("process pulse: %w", err)
	}

	ch := NewSeededChannel(p.impairments.Seed)
	if !p.impairments.Noiseless {
		if math.IsNaN(p.impairments.SNRdB) {
			return PulseResult{}, fmt.Errorf("process pulse: %w: snr is NaN", ErrInvalidConfig)
		}
		// SNR is taken against the code, not the mostly empty frame
		rx = ch.addGaussian(rx, dsp.MeanPower(code)/math.Pow(10, p.impairments.SNRdB/10))
	}
	if p.impairments.ClutterPower != 0 {
		if rx, err = ch.AddClutter(rx, p.impairments.ClutterPower); err != nil {
			return PulseResult{}, fmt.Errorf("process pulse: %w", err)
		}
	}

	compressed, err := CompressPulse(rx, code)
	if err != nil {
		return PulseResult{}, fmt.Errorf("process pulse: %w", err)
	}
	st := dsp.SignalStats(compressed)
	res := PulseResult{
		RunID:        runID,
		Target:       target,
		Code:         code,
		Echo:         rx,
		Compressed:   compressed,
		Stats:        st,
		DelaySamples: delay,
		RangeM:       float64(st.PeakIndex-(len(code)-1)) / p.cfg.SampleRateHz * SpeedOfLight / 2,
	}
	log.Info("pulse compressed",
		logging.F("barker", barkerLen),
		logging.F("peak_index", st.PeakIndex),
		logging.F("peak_amplitude", st.PeakAmplitude),
		logging.F("range_m", res.RangeM),
	)
	return res, nil
}
