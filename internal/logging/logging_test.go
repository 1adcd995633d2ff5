package logging_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delwen/slipmsg/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"error": slog.LevelError,
		"WARN":  slog.LevelWarn,
		"info":  slog.LevelInfo,
		"debug": slog.LevelDebug,
	}
	for in, want := range cases {
		lvl, err := logging.ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, lvl)
	}

	_, err := logging.ParseLevel("bogus")
	assert.ErrorIs(t, err, logging.ErrUnknownLogLevel)
}

func TestParseFormat(t *testing.T) {
	f, err := logging.ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, logging.FormatJSON, f)

	_, err = logging.ParseFormat("bogus")
	assert.ErrorIs(t, err, logging.ErrUnknownLogFormat)
}

func TestConfig_RegisterFlagsAndBuildHandler(t *testing.T) {
	cfg := logging.NewConfig()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{"--log-level=debug", "--log-format=json"}))

	var buf bytes.Buffer
	handler, err := cfg.NewHandler(&buf)
	require.NoError(t, err)

	logger := slog.New(handler)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), "hello")
}
