package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-diet-check/internal/log"
)

func TestGetLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		"error":   {in: "error", want: slog.LevelError},
		"warning": {in: "WARNING", want: slog.LevelWarn},
		"info":    {in: "info", want: slog.LevelInfo},
		"debug":   {in: "Debug", want: slog.LevelDebug},
		"unknown": {in: "trace", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := log.GetLevel(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, log.ErrUnknownLogLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCreateHandlerWithStrings(t *testing.T) {
	t.Parallel()

	for _, format := range log.AllFormats {
		var buf bytes.Buffer
		h, err := log.CreateHandlerWithStrings(&buf, "info", format)
		require.NoError(t, err, format)

		slog.New(h).Info("profile loaded", slog.String("profile", "Family"))
		assert.Contains(t, buf.String(), "profile loaded", format)
		assert.Contains(t, buf.String(), "Family", format)
	}

	_, err := log.CreateHandlerWithStrings(&bytes.Buffer{}, "info", "xml")
	require.ErrorIs(t, err, log.ErrInvalidArgument)
	require.ErrorIs(t, err, log.ErrUnknownLogFormat)
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil)).With(slog.String("request_id", "abc"))

	ctx := log.IntoContext(context.Background(), logger)
	log.WithContext(ctx).Info("hello")
	assert.Contains(t, buf.String(), `"request_id":"abc"`)

	assert.NotNil(t, log.WithContext(context.Background()))
}

func TestOpenFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "dietcheck.log")
	w, err := log.OpenFile(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.FileExists(t, path)
}
