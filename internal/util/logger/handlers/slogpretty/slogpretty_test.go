package slogpretty

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleFormatsTimestamp(t *testing.T) {
	var buf bytes.Buffer

	h := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}.NewPrettyHandler(&buf)

	at := time.Date(2026, 8, 23, 13, 7, 9, 123_000_000, time.UTC)
	r := slog.NewRecord(at, slog.LevelInfo, "hello", 0)

	require.NoError(t, h.Handle(context.Background(), r))

	// Minutes and seconds must land in their own positions.
	assert.Contains(t, buf.String(), "[13:07:09.123]")
}

func TestHandleIncludesAttrs(t *testing.T) {
	var buf bytes.Buffer

	h := PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: slog.LevelDebug},
	}.NewPrettyHandler(&buf)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "hosting room", 0)
	r.AddAttrs(slog.String("room", "study"))

	require.NoError(t, h.Handle(context.Background(), r))

	out := buf.String()
	assert.Contains(t, out, `"room"`)
	assert.Contains(t, out, `"study"`)
}
