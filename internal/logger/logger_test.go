package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_RenamesKeysAndTagsService(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "ridemeter", "info")

	log.Info("meter settled", "kind", "waiting")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "meter settled", line["message"])
	assert.Equal(t, "ridemeter", line["service"])
	assert.Equal(t, "waiting", line["kind"])
	assert.Contains(t, line, "timestamp")
	assert.NotContains(t, line, "msg")
}

func TestNewWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "ridemeter", "warn")

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}
