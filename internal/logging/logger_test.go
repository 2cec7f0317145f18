package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Warn, Text, &buf)
	l.Info("hidden")
	l.Warn("shown", F("bins", 512))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown bins=512")
}

func TestWithAccumulatesFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Debug, Text, &buf)
	child := base.With(F("run_id", "abc"))
	child.Debug("step", F("stage", "mix"))
	base.Debug("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "run_id=abc stage=mix")
	assert.NotContains(t, lines[1], "run_id")
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Info, JSON, &buf)
	l.Error("failed", F("err", errors.New("boom")), F("count", 3))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &payload))
	assert.Equal(t, "ERROR", payload["level"])
	assert.Equal(t, "failed", payload["msg"])
	assert.Equal(t, "boom", payload["err"])
	assert.EqualValues(t, 3, payload["count"])
}

func TestConfigure(t *testing.T) {
	l, err := Configure("debug", "json", &bytes.Buffer{})
	require.NoError(t, err)
	assert.NotNil(t, l)

	_, err = Configure("loud", "text", &bytes.Buffer{})
	assert.Error(t, err)
	_, err = Configure("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseLevelAndFormat(t *testing.T) {
	lvl, err := ParseLevel(" Warning ")
	require.NoError(t, err)
	assert.Equal(t, Warn, lvl)
	assert.Equal(t, "WARN", lvl.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, Text, f)
}

func TestDefaultIsQuietUntilSet(t *testing.T) {
	assert.NotNil(t, Default())

	var buf bytes.Buffer
	SetDefault(New(Info, Text, &buf))
	t.Cleanup(func() { SetDefault(Nop()) })
	Default().Info("hello")
	assert.Contains(t, buf.String(), "hello")

	SetDefault(nil)
	Default().Info("again")
	assert.Contains(t, buf.String(), "again")
}
