package fmcw

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rjboer/GoFMCW/internal/dsp"
	"github.com/rjboer/GoFMCW/internal/logging"
)

// Processor runs the full single- and multi-target chains for one Config.
// The chirp is generated once in NewProcessor and reused read-only.
type Processor struct {
	cfg         Config
	chirp       Waveform
	impairments Impairments
	cfar        dsp.CFAR
	logger      logging.Logger
}

// Option customises a Processor.
type Option func(*Processor)

// WithImpairments replaces DefaultImpairments.
func WithImpairments(imp Impairments) Option {
	return func(p *Processor) { p.impairments = imp }
}

// WithCFAR replaces the default detector (guard 2, training 5, factor 3).
func WithCFAR(c dsp.CFAR) Option {
	return func(p *Processor) { p.cfar = c }
}

// WithLogger sets the logger used for run summaries and warnings.
func WithLogger(l logging.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// DefaultCFAR is the detector used when none is configured.
func DefaultCFAR() dsp.CFAR {
	return dsp.CFAR{Guard: 2, Training: 5, Factor: 3}
}

// NewProcessor validates cfg and precomputes the transmit chirp.
func NewProcessor(cfg Config, opts ...Option) (*Processor, error) {
	chirp, err := GenerateChirp(cfg)
	if err != nil {
		return nil, err
	}
	p := &Processor{
		cfg:         cfg,
		chirp:       chirp,
		impairments: DefaultImpairments(),
		cfar:        DefaultCFAR(),
		logger:      logging.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the radar parameters.
func (p *Processor) Config() Config { return p.cfg }

// Chirp returns a copy of the transmit waveform.
func (p *Processor) Chirp() Waveform {
	return Waveform{
		Times:   append([]float64(nil), p.chirp.Times...),
		Samples: append([]complex128(nil), p.chirp.Samples...),
	}
}

// TargetResult is everything the single-target chain produces.
type TargetResult struct {
	RunID      string
	Target     Target
	Beat       []complex128
	Spectrum   dsp.Spectrum
	Mask       []bool
	Detections []Detection
}

// ProcessTarget simulates one echo, dechirps it and runs CFAR on its
// spectrum.
func (p *Processor) ProcessTarget(target Target) (TargetResult, error) {
	runID := uuid.NewString()
	log := p.logger.With(logging.F("run_id", runID), logging.F("target", target.String()))
	p.warnIfNegative(log, target)

	beat, err := BeatSignal(p.chirp, p.cfg, target, p.impairments, NewSeededChannel(p.impairments.Seed))
	if err != nil {
		return TargetResult{}, fmt.Errorf("process target: %w", err)
	}
	spec, err := dsp.FFT1D(beat, p.cfg.SampleRateHz)
	if err != nil {
		return TargetResult{}, fmt.Errorf("process target: %w", err)
	}
	mask := p.cfar.Detect(spec.Bins)
	res := TargetResult{
		RunID:      runID,
		Target:     target,
		Beat:       beat,
		Spectrum:   spec,
		Mask:       mask,
		Detections: Detections(spec, mask, p.cfg),
	}
	log.Info("single target processed",
		logging.F("samples", len(beat)),
		logging.F("detections", len(res.Detections)),
	)
	return res, nil
}

// ProcessTargets builds the Range-Doppler map for targets. Row order matches
// the order of targets.
func (p *Processor) ProcessTargets(ctx context.Context, targets []Target) (RangeDopplerMap, error) {
	runID := uuid.NewString()
	log := p.logger.With(logging.F("run_id", runID))
	for _, tgt := range targets {
		p.warnIfNegative(log, tgt)
	}

	beats, err := SimulateTargets(ctx, p.chirp, p.cfg, targets, p.impairments)
	if err != nil {
		return RangeDopplerMap{}, fmt.Errorf("process targets: %w", err)
	}
	m, err := AssembleRangeDoppler(beats)
	if err != nil {
		return RangeDopplerMap{}, fmt.Errorf("process targets: %w", err)
	}
	row, col, mag := m.Peak()
	log.Info("range-doppler map assembled",
		logging.F("rows", m.Rows),
		logging.F("cols", m.Cols),
		logging.F("peak_row", row),
		logging.F("peak_col", col),
		logging.F("peak_mag", mag),
	)
	return m, nil
}

func (p *Processor) warnIfNegative(log logging.Logger, t Target) {
	if t.Range < 0 {
		log.Warn("target range is negative; echo will precede the transmit chirp", logging.F("range_m", t.Range))
	}
}
