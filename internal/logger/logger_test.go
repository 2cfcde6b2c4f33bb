package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(&Config{Level: "debug", Format: "json", Output: buf, ServiceName: "photocache-test"})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())
	ctx = SetRunID(ctx, "run-1")
	ctx = SetComponent(ctx, "cache")

	CtxInfo(ctx, "refresh %s", "started")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "refresh started", lines[0]["message"])
	assert.Equal(t, "run-1", lines[0][FieldRunID])
	assert.Equal(t, "cache", lines[0][FieldComponent])
	assert.Equal(t, "photocache-test", lines[0]["service"])
	assert.Equal(t, "run-1", FromContext(ctx).Data[FieldRunID])
}

func TestEntryAddsMetricFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())

	With(Fields{"added": 2}).WithDuration(12).WithCount(3).WithStatus("completed").Info(ctx, "done")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.EqualValues(t, 2, lines[0]["added"])
	assert.EqualValues(t, 12, lines[0][FieldDurationMs])
	assert.EqualValues(t, 3, lines[0][FieldCount])
	assert.Equal(t, "completed", lines[0][FieldStatus])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, GetDefault(), FromContext(context.Background()))
}

func TestCtxErrorCarriesRequestFields(t *testing.T) {
	var buf bytes.Buffer
	ctx := newBufferLogger(&buf).WithContext(context.Background())
	ctx = SetRequestID(ctx, "req-9")

	CtxError(ctx, "save failed: %v", "disk full")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "error", lines[0]["level"])
	assert.Equal(t, "save failed: disk full", lines[0]["message"])
	assert.Equal(t, "req-9", lines[0][FieldRequestID])
}

func TestNewFromEnvWritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "cli.log")
	t.Cleanup(func() { _ = Sync() })

	l := NewFromEnv(&EnvConfig{
		Level:       "info",
		Format:      "json",
		Console:     &console,
		ServiceName: "photocache-cli",
		Environment: "prod",
		LogFile:     logFile,
		MaxSize:     1,
	})
	l.Info("hello")

	lines := decodeLines(t, &console)
	require.Len(t, lines, 1)
	assert.Equal(t, "photocache-cli", lines[0]["service"])

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestNewFromEnvLocalSkipsFile(t *testing.T) {
	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "cli.log")

	NewFromEnv(&EnvConfig{Format: "json", Console: &console, Environment: "local", LogFile: logFile}).Info("hi")

	assert.Len(t, decodeLines(t, &console), 1)
	assert.NoFileExists(t, logFile)
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&Config{Level: "loud", Format: "json", Output: &buf})

	l.Debug("hidden")
	l.Info("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}
