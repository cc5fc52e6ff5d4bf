package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerNotNil(t *testing.T) {
	require.NotNil(t, NewLogger(Config{}))
}

func TestNewLoggerUsesTextHandlerWithInfoLevel(t *testing.T) {
	logger := NewLogger(Config{Format: "text", Level: "info"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestNewLoggerJSONIncludesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Format: "json", Level: "debug", Service: "pacs-bridge", Version: "v1", Output: &buf})
	logger.Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "pacs-bridge", line[FieldService])
	assert.Equal(t, "v1", line[FieldVersion])
	assert.Equal(t, "hello", line["msg"])
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseLevel(raw), raw)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	fallback := slog.Default()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	scoped := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
	assert.Equal(t, context.Background(), WithLogger(context.Background(), nil))
}

func TestHelpersAreNilSafe(t *testing.T) {
	Debug(nil, "x")
	Info(nil, "x")
	Warn(nil, "x")
	Error(nil, "x", nil)
}

func TestWithCommon(t *testing.T) {
	attrs := WithCommon(nil, "svc", "v1")
	require.Len(t, attrs, 2)
	assert.Equal(t, FieldService, attrs[0].Key)
	assert.Equal(t, "v1", attrs[1].Value.String())

	kept := WithCommon([]slog.Attr{slog.String("existing", "x")}, "", "")
	require.Len(t, kept, 1)
	assert.Equal(t, "existing", kept[0].Key)
}
