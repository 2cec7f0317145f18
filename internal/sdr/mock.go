package sdr

import (
	"context"
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"sync"

	"github.com/rjboer/GoFMCW/internal/fmcw"
)

// MockSource synthesizes sample blocks. The target can be moved while a
// stream is running.
type MockSource struct {
	mu      sync.RWMutex
	cfg     Config
	rng     *rand.Rand
	chirp   fmcw.Waveform
	emitted int
	phase   float64
}

func NewMock() *MockSource { return &MockSource{} }

func (m *MockSource) Init(_ context.Context, cfg Config) error {
	if cfg.Mode == "" {
		cfg.Mode = ModeNoise
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = 1024
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 10e6
	}
	if cfg.NoiseStd == 0 && cfg.Mode == ModeTone {
		cfg.NoiseStd = 1e-4
	}
	if cfg.BlockSize < 0 || cfg.Blocks < 0 {
		return fmt.Errorf("mock source: negative block size or count")
	}

	var chirp fmcw.Waveform
	switch cfg.Mode {
	case ModeNoise, ModeTone:
	case ModeEcho:
		var err error
		if chirp, err = fmcw.GenerateChirp(cfg.Radar); err != nil {
			return fmt.Errorf("mock source: %w", err)
		}
		cfg.BlockSize = chirp.Len()
		cfg.SampleRate = cfg.Radar.SampleRateHz
	default:
		return fmt.Errorf("mock source: unknown mode %q", cfg.Mode)
	}

	m.mu.Lock()
	m.cfg = cfg
	m.rng = rand.New(rand.NewSource(cfg.Seed))
	m.chirp = chirp
	m.emitted = 0
	m.phase = 0
	m.mu.Unlock()
	return nil
}

func (m *MockSource) Close() error { return nil }

// SetTarget moves the simulated reflector used by ModeEcho.
func (m *MockSource) SetTarget(t fmcw.Target) {
	m.mu.Lock()
	m.cfg.Target = t
	m.mu.Unlock()
}

// Target returns the current simulated reflector.
func (m *MockSource) Target() fmcw.Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Target
}

// BlockSize reports the length of every block Next returns.
func (m *MockSource) BlockSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.BlockSize
}

// SampleRate reports the sample rate of the emitted blocks.
func (m *MockSource) SampleRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.SampleRate
}

func (m *MockSource) Next(ctx context.Context) ([]complex128, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rng == nil {
		return nil, fmt.Errorf("mock source: not initialized")
	}
	if m.cfg.Blocks > 0 && m.emitted >= m.cfg.Blocks {
		return nil, ErrExhausted
	}

	var block []complex128
	switch m.cfg.Mode {
	case ModeTone:
		block = m.tone()
	case ModeEcho:
		ch := fmcw.NewChannel(m.rng)
		beat, err := fmcw.BeatSignal(m.chirp, m.cfg.Radar, m.cfg.Target, m.cfg.Impairment, ch)
		if err != nil {
			return nil, fmt.Errorf("mock source: %w", err)
		}
		block = beat
	default:
		block = make([]complex128, m.cfg.BlockSize)
		for i := range block {
			block[i] = complex(m.rng.NormFloat64(), 0)
		}
	}
	m.emitted++
	return block, nil
}

// tone keeps phase continuous across blocks.
func (m *MockSource) tone() []complex128 {
	n := m.cfg.BlockSize
	block := make([]complex128, n)
	phaseStep := 2 * math.Pi * m.cfg.ToneOffset / m.cfg.SampleRate
	for i := 0; i < n; i++ {
		noise := complex(m.rng.NormFloat64()*m.cfg.NoiseStd, m.rng.NormFloat64()*m.cfg.NoiseStd)
		block[i] = cmplx.Rect(1, m.phase) + noise
		m.phase = math.Mod(m.phase+phaseStep, 2*math.Pi)
	}
	return block
}
