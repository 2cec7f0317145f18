// Package sdr supplies sample blocks to the streaming front end. Only
// synthetic sources exist; hardware capture is out of scope.
package sdr

import (
	"context"
	"errors"

	"github.com/rjboer/GoFMCW/internal/fmcw"
)

// ErrExhausted is returned by Next once a bounded source has delivered all of
// its blocks.
var ErrExhausted = errors.New("sdr: source exhausted")

// Mode selects what a synthetic source emits.
type Mode string

const (
	// ModeNoise emits real-valued white Gaussian noise blocks.
	ModeNoise Mode = "noise"
	// ModeTone emits a complex tone at ToneOffset plus a small noise floor.
	ModeTone Mode = "tone"
	// ModeEcho emits the dechirped beat signal of Target, one chirp per block.
	ModeEcho Mode = "echo"
)

// Config carries parameters required to initialize a source.
type Config struct {
	Mode       Mode
	BlockSize  int
	SampleRate float64
	// Blocks bounds the number of blocks; zero means unbounded.
	Blocks     int
	Seed       int64
	ToneOffset float64
	NoiseStd   float64
	Radar      fmcw.Config
	Target     fmcw.Target
	Impairment fmcw.Impairments
}

// Source is a pull-based producer of fixed-size complex sample blocks.
type Source interface {
	Init(ctx context.Context, cfg Config) error
	Next(ctx context.Context) ([]complex128, error)
	Close() error
}
