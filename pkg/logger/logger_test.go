package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/warden/pkg/logger"
)

type ctxKey struct{}

func requestID(ctx context.Context) (slog.Attr, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	if !ok || id == "" {
		return slog.Attr{}, false
	}
	return slog.String("request_id", id), true
}

func decodeLines(t *testing.T, s string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("respects level and extractors", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log, closeFn, err := logger.Build(logger.Config{Level: "warn", Output: &buf}, requestID)
		require.NoError(t, err)
		defer closeFn()

		ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")
		log.InfoContext(ctx, "hidden")
		log.WarnContext(ctx, "shown", slog.Int("n", 3))

		lines := decodeLines(t, buf.String())
		require.Len(t, lines, 1)
		require.Equal(t, "shown", lines[0]["msg"])
		require.Equal(t, "req-1", lines[0]["request_id"])
		require.InDelta(t, 3, lines[0]["n"], 0)
	})

	t.Run("writes the file sink", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "app.jsonl")
		var buf bytes.Buffer
		log, closeFn, err := logger.Build(logger.Config{
			Output: &buf,
			File:   logger.FileConfig{Path: path, MaxSizeMB: 1},
		})
		require.NoError(t, err)

		log.With(slog.String("component", "test")).Info("to both")
		require.NoError(t, closeFn())
		require.NoError(t, closeFn())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		fromFile := decodeLines(t, string(data))
		fromOut := decodeLines(t, buf.String())
		require.Len(t, fromFile, 1)
		require.Len(t, fromOut, 1)
		require.Equal(t, "test", fromFile[0]["component"])
		require.Equal(t, fromOut[0]["msg"], fromFile[0]["msg"])
	})

	t.Run("close is safe from many goroutines", func(t *testing.T) {
		t.Parallel()

		_, closeFn, err := logger.Build(logger.Config{
			Output: io.Discard,
			File:   logger.FileConfig{Path: filepath.Join(t.TempDir(), "app.jsonl")},
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 16 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, closeFn())
			}()
		}
		wg.Wait()
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		t.Parallel()

		_, _, err := logger.Build(logger.Config{Level: "loud"})
		require.ErrorIs(t, err, logger.ErrInvalidLevel)
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := logger.ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestDecoratorGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h := logger.NewLogHandlerDecorator(slog.NewJSONHandler(&buf, nil), nil, requestID)
	log := slog.New(h).WithGroup("g")

	log.InfoContext(context.WithValue(context.Background(), ctxKey{}, "abc"), "hi", slog.String("k", "v"))

	lines := decodeLines(t, buf.String())
	require.Len(t, lines, 1)
	group, ok := lines[0]["g"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "v", group["k"])
	require.Equal(t, "abc", group["request_id"])
}

func TestNewNope(t *testing.T) {
	t.Parallel()

	log := logger.NewNope()
	require.False(t, log.Enabled(context.Background(), slog.LevelError))
	require.NotPanics(t, func() { log.Error("dropped") })
}
