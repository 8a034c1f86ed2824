package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "quiz-widget", "production", "debug")
	logger.Debug().Str("session_id", "abc").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "quiz-widget", line["app"])
	assert.Equal(t, "production", line["env"])
	assert.Equal(t, "abc", line["session_id"])
	assert.Equal(t, "hello", line["message"])
}

func TestNewFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "quiz-widget", "production", "warn")
	logger.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "quiz-widget", "production", "info")

	ctx := IntoContext(context.Background(), logger)
	l := FromContext(ctx)
	l.Info().Msg("from context")
	assert.Contains(t, buf.String(), "from context")

	buf.Reset()
	l = FromContext(context.Background())
	l.Info().Msg("nop")
	assert.Zero(t, buf.Len())
}
