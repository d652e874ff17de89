package logging

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewWithWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "production", "warn")

	logger.Info().Msg("quiet")
	assert.Empty(t, buf.String())

	logger.Warn().Msg("loud")
	assert.Contains(t, buf.String(), `"service":"coach"`)
	assert.Contains(t, buf.String(), `"message":"loud"`)
}

func TestNewWithWriterBadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "production", "chatty")

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromContextCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithRequestID(context.Background(), zerolog.New(&buf), "req-9")

	l := FromContext(ctx, zerolog.Nop())
	l.Info().Msg("handled")
	assert.Contains(t, buf.String(), `"request_id":"req-9"`)
}

func TestFromContextFallsBack(t *testing.T) {
	var buf bytes.Buffer
	fallback := zerolog.New(&buf)

	l := FromContext(context.Background(), fallback)
	l.Info().Msg("fallback")
	assert.Contains(t, buf.String(), "fallback")
	assert.NotContains(t, buf.String(), "request_id")
}
