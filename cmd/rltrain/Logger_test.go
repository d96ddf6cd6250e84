package main

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	var out bytes.Buffer
	logger := newLogger(&out, "warn", false)
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"message":"shown"`)

	out.Reset()
	console := newLogger(&out, "bogus", true)
	assert.Equal(t, zerolog.InfoLevel, console.GetLevel())
	console.Info().Msg("shown")
	assert.NotContains(t, out.String(), `"message"`)
	assert.Contains(t, out.String(), "shown")
}
