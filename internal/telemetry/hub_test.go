package telemetry

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rjboer/GoFMCW/internal/fmcw"
	"github.com/rjboer/GoFMCW/internal/logging"
)

func newTestHub() *Hub {
	return NewHub(10, logging.New(logging.Debug, logging.Text, io.Discard))
}

func sampleWithSeq(seq int) Sample {
	return Sample{
		SessionID:  "s1",
		Sequence:   seq,
		Timestamp:  time.Unix(int64(seq), 0).UTC(),
		Samples:    4,
		PeakFreqHz: 2e6,
		PeakDB:     12,
		Detections: []fmcw.Detection{{Bin: 1, FreqHz: 2e6, RangeM: 60, Magnitude: 4}},
		SpectrumDB: []float64{1, 2, 3, 4},
	}
}

func TestHistoryIsBounded(t *testing.T) {
	hub := NewHub(3, logging.Nop())
	for i := 0; i < 5; i++ {
		hub.Report(sampleWithSeq(i))
	}
	history := hub.History()
	if len(history) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(history))
	}
	if history[0].Sequence != 2 || history[2].Sequence != 4 {
		t.Fatalf("unexpected history order: %d..%d", history[0].Sequence, history[2].Sequence)
	}
	latest, ok := hub.Latest()
	if !ok || latest.Sequence != 4 {
		t.Fatalf("expected latest sequence 4, got %d (ok=%v)", latest.Sequence, ok)
	}
}

func TestReportDecimatesSpectrum(t *testing.T) {
	hub := newTestHub()
	hub.mu.Lock()
	hub.config.SpectrumBins = 2
	hub.mu.Unlock()

	hub.Report(sampleWithSeq(1))
	latest, _ := hub.Latest()
	if len(latest.SpectrumDB) != 2 {
		t.Fatalf("expected 2 bins after decimation, got %d", len(latest.SpectrumDB))
	}
	if latest.SpectrumDB[0] != 1 || latest.SpectrumDB[1] != 3 {
		t.Fatalf("unexpected decimated bins %v", latest.SpectrumDB)
	}
}

func TestMultiReporterFansOut(t *testing.T) {
	a, b := newTestHub(), newTestHub()
	MultiReporter{a, nil, b}.Report(sampleWithSeq(7))
	if len(a.History()) != 1 || len(b.History()) != 1 {
		t.Fatalf("expected both hubs to receive the sample")
	}
}

func TestStdoutReporterLogs(t *testing.T) {
	var buf bytes.Buffer
	r := NewStdoutReporter(logging.New(logging.Info, logging.Text, &buf))
	r.Report(sampleWithSeq(3))
	out := buf.String()
	if !strings.Contains(out, "block analysed") || !strings.Contains(out, "seq=3") {
		t.Fatalf("unexpected log output %q", out)
	}
	if !strings.Contains(out, "R=60.00m") {
		t.Fatalf("expected detection in log output, got %q", out)
	}
}

func TestHandleHistoryReturnsSamples(t *testing.T) {
	hub := newTestHub()
	hub.Report(sampleWithSeq(1))
	hub.Report(sampleWithSeq(2))

	rr := httptest.NewRecorder()
	hub.handleHistory(rr, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	var resp []Sample
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 || resp[1].Sequence != 2 {
		t.Fatalf("unexpected history %+v", resp)
	}
	if resp[0].Detections[0].RangeM != 60 {
		t.Fatalf("expected detection range 60, got %v", resp[0].Detections[0].RangeM)
	}
}

func TestHandleDiagnosticsReturnsMetrics(t *testing.T) {
	hub := newTestHub()
	hub.Report(sampleWithSeq(1))

	req := httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil)
	rr := httptest.NewRecorder()

	hub.handleDiagnostics(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp Diagnostics
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Process.NumGoroutine == 0 {
		t.Fatal("expected goroutine count to be reported")
	}
	if resp.Process.Uptime <= 0 {
		t.Fatal("expected positive uptime")
	}
	if resp.Reported != 1 || resp.Stored != 1 {
		t.Fatalf("expected 1 reported and stored sample, got %d/%d", resp.Reported, resp.Stored)
	}
}

func TestHandleDiagnosticsMethodNotAllowed(t *testing.T) {
	hub := newTestHub()
	req := httptest.NewRequest(http.MethodPost, "/api/diagnostics", nil)
	rr := httptest.NewRecorder()

	hub.handleDiagnostics(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestHandleHealthTracksSamples(t *testing.T) {
	hub := newTestHub()

	rr := httptest.NewRecorder()
	hub.handleHealth(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var idle HealthStatus
	if err := json.NewDecoder(rr.Body).Decode(&idle); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if idle.Status != "idle" {
		t.Fatalf("expected idle before any sample, got %q", idle.Status)
	}

	hub.Report(sampleWithSeq(1))
	rr = httptest.NewRecorder()
	hub.handleHealth(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	var ok HealthStatus
	if err := json.NewDecoder(rr.Body).Decode(&ok); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if ok.Status != "ok" {
		t.Fatalf("expected ok after a sample, got %q", ok.Status)
	}
}

func TestHandleSetConfig(t *testing.T) {
	hub := newTestHub()
	for i := 0; i < 5; i++ {
		hub.Report(sampleWithSeq(i))
	}

	body := strings.NewReader(`{"historyLimit": 2}`)
	rr := httptest.NewRecorder()
	hub.handleSetConfig(rr, httptest.NewRequest(http.MethodPost, "/api/config/update", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	cfg := hub.ConfigSnapshot()
	if cfg.HistoryLimit != 2 {
		t.Fatalf("expected history limit 2, got %d", cfg.HistoryLimit)
	}
	if cfg.SpectrumBins != defaultConfig().SpectrumBins {
		t.Fatalf("expected spectrum bins to keep previous value, got %d", cfg.SpectrumBins)
	}
	if len(hub.History()) != 2 {
		t.Fatalf("expected history trimmed to 2, got %d", len(hub.History()))
	}
}

func TestHandleSetConfigRejectsInvalid(t *testing.T) {
	hub := newTestHub()
	cases := []string{
		`{"historyLimit": -1}`,
		`{"spectrumBins": 1000}`,
		`not json`,
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		hub.handleSetConfig(rr, httptest.NewRequest(http.MethodPost, "/api/config/update", strings.NewReader(c)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: expected 400, got %d", c, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	hub.handleSetConfig(rr, httptest.NewRequest(http.MethodGet, "/api/config/update", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestLiveStreamsEvents(t *testing.T) {
	hub := newTestHub()
	hub.Report(sampleWithSeq(1))

	srv := httptest.NewServer(hub.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/live", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("live request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readSeq := func() int {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read event: %v", err)
			}
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var s Sample
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &s); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			return s.Sequence
		}
	}

	if seq := readSeq(); seq != 1 {
		t.Fatalf("expected replayed sequence 1, got %d", seq)
	}
	hub.Report(sampleWithSeq(2))
	if seq := readSeq(); seq != 2 {
		t.Fatalf("expected live sequence 2, got %d", seq)
	}
}

func TestIndexServed(t *testing.T) {
	hub := newTestHub()
	rr := httptest.NewRecorder()
	hub.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "FMCW telemetry") {
		t.Fatal("expected embedded index page")
	}
}
