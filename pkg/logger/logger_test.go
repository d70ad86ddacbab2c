package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponentLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Configure("text", LogLevelWarn, map[string]LogLevel{"engine": LogLevelDebug})
	t.Cleanup(func() {
		Configure("text", LogLevelInfo, nil)
	})
	SetOutput(&buf)

	Get("engine").Debug("Installing rules", "count", 4)
	Get("p4rt").Info("Connected")
	Get("p4rt").Warn("Stream closed", "device", "device:leaf1")

	out := buf.String()
	assert.Contains(t, out, "[engine] Installing rules count=4")
	assert.NotContains(t, out, "Connected")
	assert.Contains(t, out, "[p4rt] Stream closed device=device:leaf1")
}

func TestEffectiveLevelWalksParents(t *testing.T) {
	Configure("text", LogLevelError, map[string]LogLevel{"engine": LogLevelDebug})
	t.Cleanup(func() {
		Configure("text", LogLevelInfo, nil)
	})

	assert.Equal(t, LogLevelDebug, levelToLogLevel(getEffectiveLevel("engine.cleanup")))
	assert.Equal(t, LogLevelError, levelToLogLevel(getEffectiveLevel("p4rt")))
	assert.Equal(t, LogLevelError, GetDefaultLevel())
	assert.Equal(t, map[string]LogLevel{"engine": LogLevelDebug}, GetComponentLevels())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Configure("json", LogLevelInfo, nil)
	SetOutput(&buf)
	t.Cleanup(func() {
		Configure("text", LogLevelInfo, nil)
	})

	WithDevice(Get("engine"), "device:leaf1").Info("Packet received from checker")

	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)
	assert.Contains(t, line, `"component":"engine"`)
	assert.Contains(t, line, `"device":"device:leaf1"`)
}
