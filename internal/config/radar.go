// Package config persists radar parameters and loads application settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rjboer/GoFMCW/internal/fmcw"
)

// ErrIOFailure wraps every read, write or decode failure of a config file.
var ErrIOFailure = errors.New("config: io failure")

// radarFile is the on-disk form: exactly the four sweep scalars.
type radarFile struct {
	FC float64 `json:"fc" yaml:"fc"`
	B  float64 `json:"B" yaml:"B"`
	T  float64 `json:"T" yaml:"T"`
	FS float64 `json:"fs" yaml:"fs"`
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// SaveRadar writes cfg to path as JSON, or YAML when path ends in .yaml/.yml.
func SaveRadar(path string, cfg fmcw.Config) error {
	rf := radarFile{FC: cfg.CarrierHz, B: cfg.BandwidthHz, T: cfg.ChirpDuration, FS: cfg.SampleRateHz}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(rf)
	} else {
		data, err = json.MarshalIndent(rf, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrIOFailure, path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// LoadRadar reads a file written by SaveRadar. All four keys must be present
// and non-null; the values are not otherwise validated.
func LoadRadar(path string) (fmcw.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmcw.Config{}, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	var raw map[string]any
	if isYAML(path) {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return fmcw.Config{}, fmt.Errorf("%w: decode %s: %v", ErrIOFailure, path, err)
	}
	for _, key := range []string{"fc", "B", "T", "fs"} {
		v, ok := raw[key]
		if !ok {
			return fmcw.Config{}, fmt.Errorf("%w: %s: missing key %q", ErrIOFailure, path, key)
		}
		if v == nil {
			return fmcw.Config{}, fmt.Errorf("%w: %s: key %q is null", ErrIOFailure, path, key)
		}
	}

	var rf radarFile
	if isYAML(path) {
		err = yaml.Unmarshal(data, &rf)
	} else {
		err = json.Unmarshal(data, &rf)
	}
	if err != nil {
		return fmcw.Config{}, fmt.Errorf("%w: decode %s: %v", ErrIOFailure, path, err)
	}
	return fmcw.Config{
		CarrierHz:     rf.FC,
		BandwidthHz:   rf.B,
		ChirpDuration: rf.T,
		SampleRateHz:  rf.FS,
	}, nil
}
