package utils

import (
	"testing"
	"time"

	"github.com/crewjam/rfc5424"
	"github.com/stretchr/testify/assert"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"zero time", time.Time{}, "N/A"},
		{"pre-filetime epoch", time.Date(1600, 12, 31, 23, 59, 59, 0, time.UTC), "Invalid Date"},
		{"far future", time.Date(3001, 1, 1, 0, 0, 0, 0, time.UTC), "Invalid Date"},
		{"normal", time.Date(2024, 3, 9, 14, 30, 5, 0, time.Local), "2024-03-09 14:30:05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTimestamp(tt.in))
		})
	}
}

func TestFormatMode(t *testing.T) {
	assert.Equal(t, "N/A", FormatMode(false, 0o755))
	assert.Equal(t, "0755", FormatMode(true, 0o755))
	assert.Equal(t, "0", FormatMode(true, 0))
}

func TestParseSeverity(t *testing.T) {
	assert.Equal(t, rfc5424.Debug, ParseSeverity("debug"))
	assert.Equal(t, rfc5424.Warning, ParseSeverity("WARN"))
	assert.Equal(t, rfc5424.Error, ParseSeverity(" error "))
	assert.Equal(t, rfc5424.Info, ParseSeverity("nonsense"))
	assert.Equal(t, rfc5424.Info, ParseSeverity(""))
}

func TestLoggerBufferAndThreshold(t *testing.T) {
	l := NewRFC5424Logger("porsha-test", rfc5424.Info)

	l.LogDebug("below threshold", nil)
	l.LogInfo("kept", map[string]string{"k": "v"})
	l.LogError("also kept", nil)

	logs := l.GetLogs()
	assert.Len(t, logs, 2)
	assert.Contains(t, logs[0], "kept")
	assert.Contains(t, logs[0], "porsha-test")

	l.ClearLogs()
	assert.Empty(t, l.GetLogs())
}
