package fmcw

import (
	"context"
	"fmt"
	"math/cmplx"
	"runtime"

	"github.com/rjboer/GoFMCW/internal/dsp"
)

// RangeDopplerMap is the 2-D spectrum of stacked beat signals. Row r comes
// from the r-th input, column c from the c-th beat sample.
type RangeDopplerMap struct {
	Rows int
	Cols int
	Data [][]complex128
}

// Magnitude returns |Data| with the same shape.
func (m RangeDopplerMap) Magnitude() [][]float64 {
	out := make([][]float64, len(m.Data))
	for r, row := range m.Data {
		out[r] = make([]float64, len(row))
		for c, v := range row {
			out[r][c] = cmplx.Abs(v)
		}
	}
	return out
}

// Peak returns the row, column and magnitude of the strongest cell.
func (m RangeDopplerMap) Peak() (row, col int, mag float64) {
	for r, rowData := range m.Data {
		for c, v := range rowData {
			if a := cmplx.Abs(v); a > mag {
				row, col, mag = r, c, a
			}
		}
	}
	return row, col, mag
}

// AssembleRangeDoppler stacks beats row-wise in input order and applies a 2-D
// DFT without windowing or normalisation.
func AssembleRangeDoppler(beats [][]complex128) (RangeDopplerMap, error) {
	if len(beats) == 0 {
		return RangeDopplerMap{}, fmt.Errorf("assemble range-doppler: %w: no beat signals", ErrLengthMismatch)
	}
	cols := len(beats[0])
	for i, b := range beats {
		if len(b) != cols {
			return RangeDopplerMap{}, fmt.Errorf("assemble range-doppler: %w: beat %d has %d samples, want %d", ErrLengthMismatch, i, len(b), cols)
		}
	}
	data, err := dsp.FFT2D(beats)
	if err != nil {
		return RangeDopplerMap{}, fmt.Errorf("assemble range-doppler: %w", err)
	}
	return RangeDopplerMap{Rows: len(data), Cols: cols, Data: data}, nil
}

// Impairments describes what the channel adds to each echo.
type Impairments struct {
	SNRdB float64
	// Noiseless skips AddNoise entirely.
	Noiseless bool
	// ClutterPower of zero skips AddClutter.
	ClutterPower float64
	// Seed drives the noise source. Target k uses Seed+k.
	Seed int64
}

// DefaultImpairments mirrors the multi-target defaults: 20 dB SNR and 0.1
// clutter power.
func DefaultImpairments() Impairments {
	return Impairments{SNRdB: 20, ClutterPower: 0.1, Seed: 1}
}

// BeatSignal runs one target through the channel and the mixer.
func BeatSignal(w Waveform, cfg Config, target Target, imp Impairments, ch *Channel) ([]complex128, error) {
	rx, err := SimulateReceived(w, cfg, target)
	if err != nil {
		return nil, err
	}
	if !imp.Noiseless {
		if rx, err = ch.AddNoise(rx, imp.SNRdB); err != nil {
			return nil, err
		}
	}
	if imp.ClutterPower != 0 {
		if rx, err = ch.AddClutter(rx, imp.ClutterPower); err != nil {
			return nil, err
		}
	}
	return Mix(w.Samples, rx)
}

type beatJob struct {
	index  int
	target Target
}

type beatResult struct {
	index int
	beat  []complex128
	err   error
}

// SimulateTargets computes the beat signal of every target on a worker pool.
// The result slice is indexed like targets regardless of completion order,
// and each target draws from its own channel seeded with imp.Seed+index.
func SimulateTargets(ctx context.Context, w Waveform, cfg Config, targets []Target, imp Impairments) ([][]complex128, error) {
	if len(targets) == 0 {
		return [][]complex128{}, nil
	}
	numWorkers := runtime.NumCPU()
	if numWorkers > len(targets) {
		numWorkers = len(targets)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan beatJob)
	results := make(chan beatResult, numWorkers)

	for i := 0; i < numWorkers; i++ {
		go func() {
			for job := range jobs {
				if err := ctx.Err(); err != nil {
					results <- beatResult{index: job.index, err: err}
					continue
				}
				ch := NewSeededChannel(imp.Seed + int64(job.index))
				beat, err := BeatSignal(w, cfg, job.target, imp, ch)
				results <- beatResult{index: job.index, beat: beat, err: err}
			}
		}()
	}

	go func() {
		for i, tgt := range targets {
			jobs <- beatJob{index: i, target: tgt}
		}
		close(jobs)
	}()

	beats := make([][]complex128, len(targets))
	var firstErr error
	firstIdx := len(targets)
	for range targets {
		res := <-results
		if res.err != nil {
			if res.index < firstIdx {
				firstIdx = res.index
				firstErr = res.err
			}
			continue
		}
		beats[res.index] = res.beat
	}
	if firstErr != nil {
		return nil, fmt.Errorf("target %d: %w", firstIdx, firstErr)
	}
	return beats, nil
}
