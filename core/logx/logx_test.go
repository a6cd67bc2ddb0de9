package logx

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONFormat(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := New(Options{Level: "debug", Format: "json", Writer: &buffer})
	require.NoError(t, err)

	logger.Info().Str("run_id", "r-1").Bool("overall_passed", true).Msg("gate decided")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "r-1", line["run_id"])
	assert.Equal(t, true, line["overall_passed"])
	assert.Equal(t, "gate decided", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewConsoleFormatFiltersLevel(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := New(Options{Level: "warn", Writer: &buffer})
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buffer.String(), "hidden")
	assert.Contains(t, buffer.String(), "shown")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
	_, err = New(Options{Format: "xml"})
	assert.ErrorContains(t, err, "console or json")
}

func TestResolvePrecedence(t *testing.T) {
	t.Setenv(EnvLevel, "debug")
	assert.Equal(t, "error", Resolve("error", EnvLevel, "info"))
	assert.Equal(t, "debug", Resolve("", EnvLevel, "info"))
	t.Setenv(EnvLevel, " ")
	assert.Equal(t, "info", Resolve("", EnvLevel, "info"))
}
