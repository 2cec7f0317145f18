package fmcw

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rjboer/GoFMCW/internal/logging"
)

var threeTargets = []Target{{1000, 50}, {1500, 30}, {2000, 10}}

func TestProcessTargetsShape(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	p, err := NewProcessor(cfg)
	require.NoError(t, err)

	m, err := p.ProcessTargets(context.Background(), threeTargets)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows)
	assert.Equal(t, cfg.NumSamples(), m.Cols)
	require.Len(t, m.Data, 3)
	for _, row := range m.Data {
		assert.Len(t, row, cfg.NumSamples())
	}
	mag := m.Magnitude()
	require.Len(t, mag, 3)
	assert.Len(t, mag[0], cfg.NumSamples())
}

func TestSimulateTargetsPreservesInputOrder(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	w := mustChirp(t, cfg)
	imp := DefaultImpairments()

	targets := make([]Target, 16)
	for i := range targets {
		targets[i] = Target{Range: float64(10 * (i + 1)), Velocity: float64(i)}
	}
	parallel, err := SimulateTargets(context.Background(), w, cfg, targets, imp)
	require.NoError(t, err)

	sequential := make([][]complex128, len(targets))
	for i, tgt := range targets {
		sequential[i], err = BeatSignal(w, cfg, tgt, imp, NewSeededChannel(imp.Seed+int64(i)))
		require.NoError(t, err)
	}
	if diff := cmp.Diff(sequential, parallel); diff != "" {
		t.Fatalf("parallel beats differ from sequential order (-want +got):\n%s", diff)
	}

	want, err := AssembleRangeDoppler(sequential)
	require.NoError(t, err)
	got, err := AssembleRangeDoppler(parallel)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("range-doppler map mismatch (-want +got):\n%s", diff)
	}
}

func TestSimulateTargetsCanceled(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	w := mustChirp(t, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SimulateTargets(ctx, w, cfg, threeTargets, DefaultImpairments())
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	beats, err := SimulateTargets(context.Background(), w, cfg, nil, DefaultImpairments())
	require.NoError(t, err)
	assert.Empty(t, beats)
}

func TestAssembleRangeDopplerValidates(t *testing.T) {
	t.Parallel()
	_, err := AssembleRangeDoppler(nil)
	assert.ErrorIs(t, err, ErrLengthMismatch)
	_, err = AssembleRangeDoppler([][]complex128{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestRangeDopplerPeak(t *testing.T) {
	t.Parallel()
	m, err := AssembleRangeDoppler([][]complex128{{1, -1}, {1, -1}})
	require.NoError(t, err)
	row, col, mag := m.Peak()
	// Constant across rows and alternating across columns: energy at (0,1).
	assert.Equal(t, 0, row)
	assert.Equal(t, 1, col)
	assert.InDelta(t, 4.0, mag, 1e-12)
}

func TestProcessTargetDetectsEcho(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	p, err := NewProcessor(cfg, WithImpairments(Impairments{SNRdB: 20, Seed: 11}))
	require.NoError(t, err)

	res, err := p.ProcessTarget(Target{Range: 60})
	require.NoError(t, err)
	require.Len(t, res.Beat, cfg.NumSamples())
	require.Len(t, res.Mask, res.Spectrum.Len())
	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.Mask[100], "echo bin must be detected")

	var found bool
	for _, d := range res.Detections {
		if d.Bin == 100 {
			found = true
			assert.InDelta(t, 60, d.RangeM, 1e-6)
		}
	}
	assert.True(t, found)
}

func TestProcessTargetWarnsOnNegativeRange(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p, err := NewProcessor(DefaultConfig(), WithLogger(logging.New(logging.Warn, logging.Text, &buf)))
	require.NoError(t, err)
	_, err = p.ProcessTarget(Target{Range: -10})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "target range is negative")
}

func TestNewProcessorRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	_, err := NewProcessor(Config{CarrierHz: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProcessorChirpIsCopy(t *testing.T) {
	t.Parallel()
	p, err := NewProcessor(DefaultConfig())
	require.NoError(t, err)
	c := p.Chirp()
	c.Samples[0] = 42
	assert.NotEqual(t, complex(42, 0), p.Chirp().Samples[0])
	assert.Equal(t, DefaultConfig(), p.Config())
}
