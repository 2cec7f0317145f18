package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/rjboer/GoFMCW/internal/fmcw"
	"github.com/rjboer/GoFMCW/internal/logging"
)

// Config is the runtime configuration exposed by the hub and editable over
// HTTP.
type Config struct {
	HistoryLimit int `json:"historyLimit"`
	// SpectrumBins caps how many display bins a stored sample keeps.
	SpectrumBins int `json:"spectrumBins"`
}

const (
	minHistoryLimit = 1
	maxHistoryLimit = 10_000
	maxSpectrumBins = 1 << 16
)

func defaultConfig() Config {
	return Config{
		HistoryLimit: 500,
		SpectrumBins: 1024,
	}
}

func validateConfig(cfg Config, base Config) (Config, error) {
	if base.HistoryLimit == 0 {
		base = defaultConfig()
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = base.HistoryLimit
	}
	if cfg.SpectrumBins == 0 {
		cfg.SpectrumBins = base.SpectrumBins
	}

	if cfg.HistoryLimit < minHistoryLimit || cfg.HistoryLimit > maxHistoryLimit {
		return Config{}, fmt.Errorf("history limit must be between %d and %d", minHistoryLimit, maxHistoryLimit)
	}
	if cfg.SpectrumBins < 0 || cfg.SpectrumBins > maxSpectrumBins {
		return Config{}, fmt.Errorf("spectrum bins must be between 0 and %d", maxSpectrumBins)
	}
	if cfg.SpectrumBins&(cfg.SpectrumBins-1) != 0 {
		return Config{}, errors.New("spectrum bins must be a power of two")
	}
	return cfg, nil
}

// Sample is the outcome of analysing one streamed block.
type Sample struct {
	SessionID  string           `json:"sessionId"`
	Sequence   int              `json:"sequence"`
	Timestamp  time.Time        `json:"timestamp"`
	Samples    int              `json:"samples"`
	PeakFreqHz float64          `json:"peakFreqHz"`
	PeakDB     float64          `json:"peakDb"`
	Detections []fmcw.Detection `json:"detections"`
	// SpectrumDB is the DC-centred magnitude spectrum in dB, floored at
	// FloorDB so it stays JSON encodable.
	SpectrumDB []float64 `json:"spectrumDb,omitempty"`
}

// FloorDB replaces -Inf magnitudes in published spectra.
const FloorDB = -300.0

// Reporter receives analysed blocks.
type Reporter interface {
	Report(sample Sample)
}

// MultiReporter fans out telemetry to multiple destinations.
type MultiReporter []Reporter

// Report forwards telemetry to each configured reporter.
func (m MultiReporter) Report(sample Sample) {
	for _, r := range m {
		if r != nil {
			r.Report(sample)
		}
	}
}

// Hub collects history and fans out telemetry updates to subscribers.
type Hub struct {
	mu          sync.RWMutex
	history     []Sample
	subscribers map[chan Sample]struct{}
	config      Config
	logger      logging.Logger
	started     time.Time
	lastSample  time.Time
	reported    int
}

// NewHub builds a telemetry hub with the provided history limit.
func NewHub(historyLimit int, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	cfg := defaultConfig()
	if historyLimit > 0 {
		cfg.HistoryLimit = historyLimit
	}
	cfg, err := validateConfig(cfg, defaultConfig())
	if err != nil {
		logger.Warn("invalid hub config, using defaults", logging.F("error", err))
		cfg = defaultConfig()
	}
	return &Hub{
		subscribers: make(map[chan Sample]struct{}),
		config:      cfg,
		logger:      logger.With(logging.F("subsystem", "telemetry")),
		started:     time.Now(),
	}
}

// Report implements Reporter and records a new telemetry sample.
func (h *Hub) Report(sample Sample) {
	h.mu.Lock()
	sample.SpectrumDB = decimate(sample.SpectrumDB, h.config.SpectrumBins)
	h.history = append(h.history, sample)
	if len(h.history) > h.config.HistoryLimit {
		h.history = h.history[len(h.history)-h.config.HistoryLimit:]
	}
	h.lastSample = time.Now()
	h.reported++
	dropped := 0
	for ch := range h.subscribers {
		select {
		case ch <- sample:
		default:
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		h.logger.Debug("slow subscribers skipped", logging.F("dropped", dropped))
	}
}

// decimate keeps every k-th bin so at most limit bins remain.
func decimate(bins []float64, limit int) []float64 {
	if limit == 0 {
		return nil
	}
	if len(bins) <= limit {
		return bins
	}
	step := (len(bins) + limit - 1) / limit
	out := make([]float64, 0, limit)
	for i := 0; i < len(bins); i += step {
		out = append(out, bins[i])
	}
	return out
}

// History returns a copy of stored telemetry samples.
func (h *Hub) History() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Sample, len(h.history))
	copy(out, h.history)
	return out
}

// Latest returns the newest sample, if any.
func (h *Hub) Latest() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.history) == 0 {
		return Sample{}, false
	}
	return h.history[len(h.history)-1], true
}

// ConfigSnapshot returns the latest validated configuration.
func (h *Hub) ConfigSnapshot() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Subscribe registers a listener for live updates.
func (h *Hub) Subscribe() (chan Sample, func()) {
	ch := make(chan Sample, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			close(ch)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

func (h *Hub) applyConfig(cfg Config) {
	h.config = cfg
	if len(h.history) > cfg.HistoryLimit {
		h.history = h.history[len(h.history)-cfg.HistoryLimit:]
	}
}

// ProcessStats describes the running process.
type ProcessStats struct {
	NumGoroutine int           `json:"numGoroutine"`
	HeapAlloc    uint64        `json:"heapAlloc"`
	Uptime       time.Duration `json:"uptime"`
}

// Diagnostics is served at /api/diagnostics.
type Diagnostics struct {
	Process  ProcessStats `json:"process"`
	Reported int          `json:"reported"`
	Stored   int          `json:"stored"`
	Config   Config       `json:"config"`
}

// HealthStatus is served at /api/health. Status is "ok" when a sample
// arrived within the last staleAfter, "idle" otherwise.
type HealthStatus struct {
	Status     string       `json:"status"`
	LastSample time.Time    `json:"lastSample"`
	Process    ProcessStats `json:"process"`
}

const staleAfter = 5 * time.Second

func (h *Hub) processStats() ProcessStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return ProcessStats{
		NumGoroutine: runtime.NumGoroutine(),
		HeapAlloc:    mem.HeapAlloc,
		Uptime:       time.Since(h.started),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Hub) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.History())
}

func (h *Hub) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.ConfigSnapshot())
}

func (h *Hub) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var incoming Config
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		http.Error(w, fmt.Sprintf("invalid config payload: %v", err), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	cfg, err := validateConfig(incoming, h.config)
	if err == nil {
		h.applyConfig(cfg)
	}
	h.mu.Unlock()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Info("telemetry config updated", logging.F("history_limit", cfg.HistoryLimit), logging.F("spectrum_bins", cfg.SpectrumBins))
	writeJSON(w, cfg)
}

func (h *Hub) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.mu.RLock()
	diag := Diagnostics{
		Reported: h.reported,
		Stored:   len(h.history),
		Config:   h.config,
	}
	h.mu.RUnlock()
	diag.Process = h.processStats()
	writeJSON(w, diag)
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.mu.RLock()
	last := h.lastSample
	h.mu.RUnlock()

	status := "idle"
	if !last.IsZero() && time.Since(last) < staleAfter {
		status = "ok"
	}
	writeJSON(w, HealthStatus{Status: status, LastSample: last, Process: h.processStats()})
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Subscribe()
	defer cancel()

	// send existing history for immediate display
	for _, sample := range h.History() {
		writeEvent(w, sample)
	}
	flusher.Flush()

	for {
		select {
		case sample, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, sample)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, sample Sample) {
	payload, err := json.Marshal(sample)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
}
