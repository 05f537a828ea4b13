package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"panic":   zapcore.PanicLevel,
		"fatal":   zapcore.FatalLevel,
		"dpanic":  zapcore.DPanicLevel,
		"Info\t ": zapcore.InfoLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextHelpers checks that named and tagged loggers travel through the context.
func TestContextHelpers(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ctx := ToContext(context.Background(), zap.New(core).Sugar())
	ctx = WithName(ctx, "bootstrap")
	ctx = WithKV(ctx, "run_id", "abc")

	InfoKV(ctx, "hello", "k", 1)
	Errorf(ctx, "exited with code %d", 2)

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "bootstrap", entries[0].LoggerName)
	require.Equal(t, "abc", entries[0].ContextMap()["run_id"])
	require.Equal(t, "exited with code 2", entries[1].Message)
	require.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

// TestFromContextFallsBackToGlobal ensures a bare context yields the global logger.
func TestFromContextFallsBackToGlobal(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestNewWithWriter verifies console output lands in the provided writer.
func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	l := NewWithWriter(&buf, zapcore.InfoLevel)
	l.Debug("hidden")
	l.Infow("visible", "key", "value")
	require.NoError(t, l.Sync())

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "visible")
	require.Contains(t, buf.String(), "value")
}

// TestNewWithFile checks that the rotated file receives log lines.
func TestNewWithFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "updater.log")

	l := NewWithFile(path, zapcore.InfoLevel)
	l.Info("written to file")
	_ = l.Sync()

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(contents), "written to file")
	require.Contains(t, string(contents), "INFO")
}

// TestWithLevel verifies the pinned level filters entries below it.
func TestWithLevel(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core, WithLevel(zapcore.WarnLevel)).Sugar().With("k", "v")

	l.Info("dropped")
	l.Warn("kept")

	require.Equal(t, 1, logs.Len())
	require.Equal(t, "kept", logs.All()[0].Message)
}
