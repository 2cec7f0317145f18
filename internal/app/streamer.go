package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/rjboer/GoFMCW/internal/dsp"
	"github.com/rjboer/GoFMCW/internal/fmcw"
	"github.com/rjboer/GoFMCW/internal/logging"
	"github.com/rjboer/GoFMCW/internal/sdr"
	"github.com/rjboer/GoFMCW/internal/telemetry"
)

// ErrNoData is returned when the source keeps delivering empty blocks.
var ErrNoData = errors.New("app: source delivers only empty blocks")

// maxEmptyBlocks consecutive empty blocks end a run with ErrNoData.
const maxEmptyBlocks = 16

// Config captures streaming loop configuration.
type Config struct {
	// SampleRate of incoming blocks. Zero takes the rate reported by the
	// source after Init.
	SampleRate float64
	CFAR       dsp.CFAR
	// MaxBlocks stops Run after that many blocks have been pulled, empty
	// ones included; zero runs until the context ends or the source is
	// exhausted.
	MaxBlocks int
	// Radar enables range conversion of detections. For echo sources it
	// defaults to the source's radar parameters.
	Radar *fmcw.Config
}

// Pacer gates each iteration of the stream loop.
type Pacer interface {
	Wait(ctx context.Context) error
}

// TickerPacer paces iterations with a time.Ticker.
type TickerPacer struct {
	ticker *time.Ticker
}

// NewTickerPacer returns a pacer firing every interval. Call Stop when done.
func NewTickerPacer(interval time.Duration) *TickerPacer {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	return &TickerPacer{ticker: time.NewTicker(interval)}
}

func (p *TickerPacer) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ticker.C:
		return nil
	}
}

// Stop releases the underlying ticker.
func (p *TickerPacer) Stop() { p.ticker.Stop() }

// NoPacer never waits; it only reports cancellation.
type NoPacer struct{}

func (NoPacer) Wait(ctx context.Context) error { return ctx.Err() }

// sampleRater is implemented by sources that settle their rate on Init.
type sampleRater interface {
	SampleRate() float64
}

// Streamer pulls blocks from a source, analyses each one and reports the
// outcome.
type Streamer struct {
	src      sdr.Source
	reporter telemetry.Reporter
	logger   logging.Logger
	pacer    Pacer
	cfg      Config
	session  string
	seq      int
}

func NewStreamer(src sdr.Source, reporter telemetry.Reporter, logger logging.Logger, pacer Pacer, cfg Config) *Streamer {
	if logger == nil {
		logger = logging.Default()
	}
	if pacer == nil {
		pacer = NoPacer{}
	}
	if cfg.CFAR == (dsp.CFAR{}) {
		cfg.CFAR = fmcw.DefaultCFAR()
	}
	return &Streamer{
		src:      src,
		reporter: reporter,
		logger:   logger.With(logging.F("subsystem", "stream")),
		pacer:    pacer,
		cfg:      cfg,
	}
}

// Init configures the source and opens a new session.
func (s *Streamer) Init(ctx context.Context, srcCfg sdr.Config) error {
	if err := s.src.Init(ctx, srcCfg); err != nil {
		return fmt.Errorf("init source: %w", err)
	}
	if s.cfg.SampleRate == 0 {
		if r, ok := s.src.(sampleRater); ok {
			s.cfg.SampleRate = r.SampleRate()
		} else {
			s.cfg.SampleRate = srcCfg.SampleRate
		}
	}
	if s.cfg.SampleRate <= 0 {
		return fmt.Errorf("%w: stream sample rate %g", fmcw.ErrInvalidConfig, s.cfg.SampleRate)
	}
	if s.cfg.Radar == nil && srcCfg.Mode == sdr.ModeEcho {
		radar := srcCfg.Radar
		s.cfg.Radar = &radar
	}
	s.session = uuid.NewString()
	s.seq = 0
	s.logger.Info("stream initialised",
		logging.F("session", s.session),
		logging.F("mode", srcCfg.Mode),
		logging.F("sample_rate", s.cfg.SampleRate),
		logging.F("max_blocks", s.cfg.MaxBlocks))
	return nil
}

// Session returns the ID of the current session.
func (s *Streamer) Session() string { return s.session }

// Run executes the pull loop and returns the number of processed blocks.
// Exhausting the source or reaching MaxBlocks ends the run without error;
// cancellation returns the context error.
func (s *Streamer) Run(ctx context.Context) (int, error) {
	processed, empty := 0, 0
	for pulled := 0; s.cfg.MaxBlocks == 0 || pulled < s.cfg.MaxBlocks; pulled++ {
		if err := s.pacer.Wait(ctx); err != nil {
			return processed, err
		}

		start := time.Now()
		block, err := s.src.Next(ctx)
		if errors.Is(err, sdr.ErrExhausted) {
			s.logger.Info("source exhausted", logging.F("blocks", processed))
			return processed, nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return processed, ctxErr
			}
			return processed, fmt.Errorf("receive block %d: %w", processed, err)
		}
		if len(block) == 0 {
			empty++
			s.logger.Warn("received empty block", logging.F("consecutive", empty))
			if empty >= maxEmptyBlocks {
				return processed, fmt.Errorf("%w: %d in a row", ErrNoData, empty)
			}
			continue
		}
		empty = 0

		sample, err := s.Process(block)
		if err != nil {
			return processed, fmt.Errorf("process block %d: %w", processed, err)
		}
		if s.reporter != nil {
			s.reporter.Report(sample)
		}
		processed++
		s.logger.Debug("block complete",
			logging.F("seq", sample.Sequence),
			logging.F("detections", len(sample.Detections)),
			logging.F("elapsed_ms", time.Since(start).Seconds()*1000))
	}
	return processed, nil
}

// Process analyses a single block: spectrum, CFAR and peak.
func (s *Streamer) Process(block []complex128) (telemetry.Sample, error) {
	spec, err := dsp.FFT1D(block, s.cfg.SampleRate)
	if err != nil {
		return telemetry.Sample{}, err
	}
	mask := s.cfg.CFAR.Detect(spec.Bins)

	var radar fmcw.Config
	if s.cfg.Radar != nil {
		radar = *s.cfg.Radar
	}
	detections := fmcw.Detections(spec, mask, radar)

	mag := spec.Magnitude()
	peak := 0
	for i, v := range mag {
		if v > mag[peak] {
			peak = i
		}
	}

	sample := telemetry.Sample{
		SessionID:  s.session,
		Sequence:   s.seq,
		Timestamp:  time.Now(),
		Samples:    len(block),
		PeakFreqHz: spec.Freqs[peak],
		PeakDB:     floorDB(20 * math.Log10(mag[peak])),
		Detections: detections,
		SpectrumDB: shiftedDB(spec.Bins),
	}
	s.seq++
	return sample, nil
}

func shiftedDB(bins []complex128) []float64 {
	db := dsp.MagnitudeDB(dsp.FFTShift(bins))
	for i, v := range db {
		db[i] = floorDB(v)
	}
	return db
}

func floorDB(v float64) float64 {
	if math.IsNaN(v) || v < telemetry.FloorDB {
		return telemetry.FloorDB
	}
	return v
}
