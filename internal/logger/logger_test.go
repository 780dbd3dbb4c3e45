package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/DeafMist/daily-deaths-monitor/internal/logger"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "dashboard", "debug", "json")

	log.Debug("rendered", "rows", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "dashboard", entry["service"])
	require.Equal(t, "rendered", entry["msg"])
	require.Equal(t, float64(3), entry["rows"])
}

func TestNewWithWriterLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "snapshot", "warn", "")

	log.Info("ignored")
	require.Zero(t, buf.Len())

	log.Warn("kept")
	require.Contains(t, buf.String(), "msg=kept")
	require.Contains(t, buf.String(), "service=snapshot")
}
