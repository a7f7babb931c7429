package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildLoggersCarryFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	WithComponent("scheduler").Info().Str("k", "v").Msg("hello")
	WithRequestID("req-1").Debug().Msg("resolved")
	WithBackend("host-a#p1").Warn().Msg("slow report")

	out := buf.String()
	assert.Contains(t, out, `"component":"scheduler"`)
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"backend":"host-a#p1"`)
	assert.Contains(t, out, "hello")
}

func TestInitLevelFromString(t *testing.T) {
	var buf bytes.Buffer
	// Config files hand the level over as a plain string.
	Init(Config{Level: Level("warn"), JSONOutput: true, Output: &buf})

	Info("quiet")
	Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestInitDefaultsUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: Level("verbose"), JSONOutput: true, Output: &buf})

	Debug("hidden")
	Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
