package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type errorCloser struct{ err error }

func (c *errorCloser) Close() error { return c.err }

func TestNew_Formats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, slog.LevelInfo, "json").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	buf.Reset()
	New(&buf, slog.LevelInfo, "text").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn, "text")
	logger.Info("quiet")
	assert.Empty(t, buf.String())
	logger.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "json")

	LogError(logger, "load failed", errors.New("boom"), slog.String("file", "stops.txt"))

	out := buf.String()
	assert.Contains(t, out, `"level":"ERROR"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"file":"stops.txt"`)

	assert.NotPanics(t, func() { LogError(nil, "x", errors.New("y")) })
}

func TestLogOperation_SkipsZeroDuration(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "json")

	LogOperation(logger, "matrix computed", slog.Duration("duration", 0), slog.Int("stations", 3))
	assert.NotContains(t, buf.String(), "duration")
	assert.Contains(t, buf.String(), `"stations":3`)

	buf.Reset()
	LogOperation(logger, "matrix computed", slog.Duration("duration", time.Second))
	assert.Contains(t, buf.String(), "duration")
}

func TestTimed(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "json")

	require.NoError(t, Timed(logger, "write json", func() error { return nil }))
	assert.Contains(t, buf.String(), `"msg":"write json"`)

	buf.Reset()
	err := Timed(logger, "write json", func() error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, buf.String(), `"msg":"write json failed"`)
}

func TestSafeCloseWithLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "json")

	SafeCloseWithLogging(&errorCloser{}, logger, "close db")
	assert.Empty(t, buf.String())

	SafeCloseWithLogging(&errorCloser{err: assert.AnError}, logger, "close db")
	assert.Contains(t, buf.String(), `"msg":"failed to close resource"`)
	assert.Contains(t, buf.String(), `"operation":"close db"`)

	assert.NotPanics(t, func() { SafeCloseWithLogging(nil, logger, "noop") })
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo, "text")

	fallback := New(io.Discard, slog.LevelInfo, "text")

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx, fallback))
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
}
