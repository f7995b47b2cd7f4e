package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("INFO"))
	assert.Equal(t, zerolog.ErrorLevel, parseLogLevel(""), "empty level defaults to error")
	assert.Equal(t, zerolog.ErrorLevel, parseLogLevel("nonsense"), "bad level falls back to error")
}

func TestConfigureGlobalLogging(t *testing.T) {
	require.NoError(t, ConfigureGlobalLogging("warn", "text"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	require.NoError(t, ConfigureGlobalLogging("error", "text"))
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
}

func TestConfigureGlobalLoggingFormats(t *testing.T) {
	var buf bytes.Buffer
	SetLogWriter(&buf)
	defer SetLogWriter(os.Stderr)

	require.NoError(t, ConfigureGlobalLogging("info", "json"))
	log.Info().Str("key", "value").Msg("structured")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"),
		"json format must emit raw zerolog lines")
	assert.Contains(t, buf.String(), `"key":"value"`)

	buf.Reset()
	require.NoError(t, ConfigureGlobalLogging("info", "text"))
	log.Info().Msg("console line")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "{"),
		"text format goes through the console writer")
	assert.Contains(t, buf.String(), "console line")
}
