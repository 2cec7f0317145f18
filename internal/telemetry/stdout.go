package telemetry

import (
	"fmt"

	"github.com/rjboer/GoFMCW/internal/logging"
)

// StdoutReporter logs each analysed block through a logger.
type StdoutReporter struct {
	logger logging.Logger
}

// NewStdoutReporter builds a stdout reporter with the provided logger.
func NewStdoutReporter(logger logging.Logger) StdoutReporter {
	if logger == nil {
		logger = logging.Default()
	}
	return StdoutReporter{logger: logger}
}

func (r StdoutReporter) Report(sample Sample) {
	fields := []logging.Field{
		logging.F("subsystem", "telemetry"),
		logging.F("session", sample.SessionID),
		logging.F("seq", sample.Sequence),
		logging.F("samples", sample.Samples),
		logging.F("peak_hz", sample.PeakFreqHz),
		logging.F("peak_db", fmt.Sprintf("%.1f", sample.PeakDB)),
		logging.F("detections", len(sample.Detections)),
	}
	for idx, d := range sample.Detections {
		if idx >= 4 {
			break
		}
		fields = append(fields, logging.F(fmt.Sprintf("det_%d", idx), d.String()))
	}
	r.logger.Info("block analysed", fields...)
}
