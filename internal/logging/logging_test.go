package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(&buf, "warn", "json"), "descent")

	l.Info().Msg("hidden")
	require.Zero(t, buf.Len())

	l.Warn().Int("y", 12).Msg("blocked")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "descent", entry["component"])
	require.Equal(t, "blocked", entry["message"])
	require.EqualValues(t, 12, entry["y"])
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "loud", "json")
	require.Equal(t, zerolog.InfoLevel, l.GetLevel())
}
