package fmcw

import (
	"errors"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rjboer/GoFMCW/internal/dsp"
)

func TestMixLength(t *testing.T) {
	t.Parallel()
	w := mustChirp(t, DefaultConfig())
	beat, err := Mix(w.Samples, w.Samples)
	require.NoError(t, err)
	require.Len(t, beat, w.Len())
	for i, v := range beat {
		if cmplx.Abs(v-1) > 1e-12 {
			t.Fatalf("self-mix sample %d = %v, want 1", i, v)
		}
	}
}

func TestMixLengthMismatch(t *testing.T) {
	t.Parallel()
	_, err := Mix(make([]complex128, 4), make([]complex128, 5))
	assert.True(t, errors.Is(err, ErrLengthMismatch))
	assert.True(t, errors.Is(err, dsp.ErrLengthMismatch))
}

func TestMixConjugatesReceive(t *testing.T) {
	t.Parallel()
	beat, err := Mix([]complex128{1i}, []complex128{1i})
	require.NoError(t, err)
	assert.Equal(t, complex(1, 0), beat[0])
}

func TestBeatToneRecoversRange(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	w := mustChirp(t, cfg)
	tgt := Target{Range: 60}
	rx, err := SimulateReceived(w, cfg, tgt)
	require.NoError(t, err)
	beat, err := Mix(w.Samples, rx)
	require.NoError(t, err)
	spec, err := dsp.FFT1D(beat, cfg.SampleRateHz)
	require.NoError(t, err)

	st := dsp.SignalStats(spec.Bins)
	// slope*tau = 5e12 * 4e-7 = 2 MHz, bin spacing 20 kHz.
	assert.Equal(t, 100, st.PeakIndex)
	assert.InDelta(t, 2e6, spec.Freqs[st.PeakIndex], 1e-3)
	assert.InDelta(t, 60, BeatToRange(spec.Freqs[st.PeakIndex], cfg), 1e-6)
}
