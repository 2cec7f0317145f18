package sdr

import (
	"context"
	"errors"
	"testing"

	"github.com/rjboer/GoFMCW/internal/dsp"
	"github.com/rjboer/GoFMCW/internal/fmcw"
)

func TestMockToneLandsInExpectedBin(t *testing.T) {
	mock := NewMock()
	cfg := Config{Mode: ModeTone, SampleRate: 2e6, ToneOffset: 200e3, BlockSize: 512, Seed: 1}
	if err := mock.Init(context.Background(), cfg); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	block, err := mock.Next(context.Background())
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if len(block) != cfg.BlockSize {
		t.Fatalf("unexpected block size %d", len(block))
	}
	spec, err := dsp.FFT1D(block, cfg.SampleRate)
	if err != nil {
		t.Fatalf("fft failed: %v", err)
	}
	peak := dsp.SignalStats(spec.Bins).PeakIndex
	// 200 kHz at 2 MS/s over 512 points is bin 51.2.
	if peak != 51 {
		t.Fatalf("expected peak near bin 51 got %d", peak)
	}
}

func TestMockDefaulting(t *testing.T) {
	mock := NewMock()
	if err := mock.Init(context.Background(), Config{}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	block, err := mock.Next(context.Background())
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if len(block) != 1024 || mock.BlockSize() != 1024 {
		t.Fatalf("expected default 1024-sample block, got %d", len(block))
	}
	if mock.SampleRate() != 10e6 {
		t.Fatalf("unexpected default sample rate %g", mock.SampleRate())
	}
	for _, v := range block {
		if imag(v) != 0 {
			t.Fatalf("noise mode should be real-valued")
		}
	}
}

func TestMockBoundedSource(t *testing.T) {
	mock := NewMock()
	if err := mock.Init(context.Background(), Config{Blocks: 2, BlockSize: 8}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := mock.Next(context.Background()); err != nil {
			t.Fatalf("block %d: %v", i, err)
		}
	}
	if _, err := mock.Next(context.Background()); !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted got %v", err)
	}
}

func TestMockEchoUsesChirpLength(t *testing.T) {
	mock := NewMock()
	radar := fmcw.DefaultConfig()
	cfg := Config{
		Mode:       ModeEcho,
		Radar:      radar,
		Target:     fmcw.Target{Range: 60},
		Impairment: fmcw.Impairments{SNRdB: 20},
		Seed:       5,
	}
	if err := mock.Init(context.Background(), cfg); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	block, err := mock.Next(context.Background())
	if err != nil {
		t.Fatalf("next failed: %v", err)
	}
	if len(block) != radar.NumSamples() {
		t.Fatalf("expected %d samples got %d", radar.NumSamples(), len(block))
	}
	spec, _ := dsp.FFT1D(block, mock.SampleRate())
	if peak := dsp.SignalStats(spec.Bins).PeakIndex; peak != 100 {
		t.Fatalf("expected echo at bin 100 got %d", peak)
	}

	mock.SetTarget(fmcw.Target{Range: 30})
	if got := mock.Target(); got.Range != 30 {
		t.Fatalf("target not updated: %v", got)
	}
	block, _ = mock.Next(context.Background())
	spec, _ = dsp.FFT1D(block, mock.SampleRate())
	if peak := dsp.SignalStats(spec.Bins).PeakIndex; peak != 50 {
		t.Fatalf("expected moved echo at bin 50 got %d", peak)
	}
}

func TestMockRejectsBadConfig(t *testing.T) {
	mock := NewMock()
	if err := mock.Init(context.Background(), Config{Mode: "radar"}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if err := mock.Init(context.Background(), Config{Mode: ModeEcho}); !errors.Is(err, fmcw.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for empty radar config, got %v", err)
	}
	if _, err := NewMock().Next(context.Background()); err == nil {
		t.Fatalf("expected error before Init")
	}
}

func TestMockHonoursContext(t *testing.T) {
	mock := NewMock()
	_ = mock.Init(context.Background(), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := mock.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
}
