package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	"github.com/ethereum-optimism/optimism/op-service/logmods"

	"github.com/ethereum-optimism/infra/rpc-harness/store"
)

func newConsole(buf *bytes.Buffer) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: log.LevelTrace})
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Console: newConsole(&buf), Level: log.LevelInfo})
	require.NoError(t, err)

	l.Debug("hidden message")
	l.Info("visible message")

	out := buf.String()
	assert.NotContains(t, out, "hidden message")
	assert.Contains(t, out, "visible message")
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Console: newConsole(&buf), Level: log.LevelInfo})
	require.NoError(t, err)

	require.True(t, l.SetLevel("DEBUG"))
	assert.Equal(t, log.LevelDebug, l.Level())
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestSetLevelInvalidKeepsPrevious(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Console: newConsole(&buf), Level: log.LevelWarn})
	require.NoError(t, err)

	assert.False(t, l.SetLevel("verbose"))
	assert.Equal(t, log.LevelWarn, l.Level())
	assert.Contains(t, buf.String(), "Invalid log level")
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"error", "WARN", " info ", "Debug"} {
		_, err := ParseLevel(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelNameRoundTrip(t *testing.T) {
	for _, lvl := range []slog.Level{log.LevelTrace, log.LevelDebug, log.LevelInfo, log.LevelWarn, log.LevelError, log.LevelCrit} {
		parsed, err := ParseLevel(LevelName(lvl))
		require.NoError(t, err)
		assert.Equal(t, lvl, parsed)
	}
}

func TestLoggerMirrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harness.log")
	require.NoError(t, os.WriteFile(path, []byte("stale content\n"), 0644))

	var buf bytes.Buffer
	l, err := New(Config{
		Console: newConsole(&buf),
		Level:   log.LevelInfo,
		File:    path,
		Store:   store.New(),
	})
	require.NoError(t, err)

	l.New("test", "TCP").Info("Starting test run", "folder", "Legacy")
	l.Debug("filtered out")
	require.NoError(t, l.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)
	assert.NotContains(t, text, "stale content")
	assert.Contains(t, text, "Starting test run")
	assert.Contains(t, text, "test=TCP")
	assert.Contains(t, text, "folder=Legacy")
	assert.NotContains(t, text, "filtered out")
	assert.Contains(t, buf.String(), "Starting test run")
}

func TestAsyncFileRejectsWritesAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "async.log")
	af, err := NewAsyncFile(path, store.New())
	require.NoError(t, err)

	_, err = af.Write([]byte("line one\n"))
	require.NoError(t, err)
	require.NoError(t, af.Close())

	_, err = af.Write([]byte("line two\n"))
	assert.Error(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "line"))
}

func TestNewRequiresConsole(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Console: newConsole(&bytes.Buffer{}), File: "x.log"})
	assert.Error(t, err, "file without store")
}

func TestHandlerIsLevelSetter(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Console: newConsole(&buf), Level: log.LevelWarn})
	require.NoError(t, err)

	setter, ok := logmods.FindHandler[oplog.LvlSetter](l.Handler())
	require.True(t, ok)
	setter.SetLogLevel(log.LevelDebug)
	assert.Equal(t, log.LevelDebug, l.Level())

	l.New("test", "TCP").Debug("derived logger follows the level")
	assert.Contains(t, buf.String(), "derived logger follows the level")
}

func TestSetLevelWhileLogging(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Console: newConsole(&buf), Level: log.LevelInfo})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			child := l.New("worker", i)
			for j := 0; j < 100; j++ {
				child.Debug("tick", "n", j)
			}
		}()
	}
	for _, name := range []string{"debug", "info", "trace", "warn"} {
		require.True(t, l.SetLevel(name))
	}
	wg.Wait()
	assert.Equal(t, log.LevelWarn, l.Level())
}
