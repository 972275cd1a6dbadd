package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, uint(115200), cfg.Serial.Baud)
	assert.Equal(t, "none", cfg.Serial.Parity)
	assert.Equal(t, "ascii", cfg.Decode.Format)
	assert.Equal(t, 0.65, cfg.Filter.Alpha)
	assert.Equal(t, 0.55, cfg.Filter.GyroWeight)
	assert.False(t, cfg.Filter.Adaptive)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "quat/sample", cfg.MQTT.TopicSample)
	assert.Equal(t, ":8080", cfg.Web.Addr)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
serial:
  port: /dev/ttyACM1
  baud: 460800
decode:
  format: custom
filter:
  adaptive: true
mqtt:
  broker: tcp://broker.local:1883
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM1", cfg.Serial.Port)
	assert.Equal(t, uint(460800), cfg.Serial.Baud)
	assert.Equal(t, "custom", cfg.Decode.Format)
	assert.True(t, cfg.Filter.Adaptive)
	assert.Equal(t, "tcp://broker.local:1883", cfg.MQTT.Broker)
	// Untouched sections keep their defaults.
	assert.Equal(t, uint(8), cfg.Serial.DataBits)
	assert.Equal(t, 0.65, cfg.Filter.Alpha)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("QUATPIPE_SERIAL_PORT", "/dev/ttyS9")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS9", cfg.Serial.Port)
}
