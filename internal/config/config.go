// Package config loads the application configuration from a YAML file with
// environment-variable overrides, falling back to built-in defaults.
package config

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	envPrefix         = "QUATPIPE"
	defaultConfigName = "config"
)

// SerialOpt configures the ingest serial device.
type SerialOpt struct {
	Port      string `mapstructure:"port"`
	Baud      uint   `mapstructure:"baud"`
	DataBits  uint   `mapstructure:"databits"`
	StopBits  uint   `mapstructure:"stopbits"`
	Parity    string `mapstructure:"parity"`
	RTSCTS    bool   `mapstructure:"rtscts"`
	TimeoutMs uint   `mapstructure:"timeout_ms"`
}

// DecodeOpt selects the wire format.
type DecodeOpt struct {
	Format string `mapstructure:"format"`
}

// FilterOpt tunes the complementary filter and its weight policy.
type FilterOpt struct {
	Alpha      float64 `mapstructure:"alpha"`
	GyroWeight float64 `mapstructure:"gyro_weight"`
	Adaptive   bool    `mapstructure:"adaptive"`
	AlphaMin   float64 `mapstructure:"alpha_min"`
	AlphaMax   float64 `mapstructure:"alpha_max"`
	GyroMin    float64 `mapstructure:"gyro_min"`
	GyroMax    float64 `mapstructure:"gyro_max"`
}

// MQTTOpt names the broker and topics shared by producer and consumers.
type MQTTOpt struct {
	Broker           string `mapstructure:"broker"`
	ClientIDProducer string `mapstructure:"client_id_producer"`
	ClientIDConsole  string `mapstructure:"client_id_console"`
	ClientIDWeb      string `mapstructure:"client_id_web"`
	TopicSample      string `mapstructure:"topic_sample"`
	TopicRate        string `mapstructure:"topic_rate"`
}

// WebOpt configures the HTTP/websocket consumer.
type WebOpt struct {
	Addr string `mapstructure:"addr"`
}

// IMUOpt configures the optional on-board sensor source.
type IMUOpt struct {
	SPIDevice string `mapstructure:"spi_device"`
	CSPin     string `mapstructure:"cs_pin"`
	// Sample cadence in milliseconds.
	SampleIntervalMs int `mapstructure:"sample_interval_ms"`
}

// Config is the root of the YAML schema.
type Config struct {
	Debug  bool      `mapstructure:"debug"`
	Serial SerialOpt `mapstructure:"serial"`
	Decode DecodeOpt `mapstructure:"decode"`
	Filter FilterOpt `mapstructure:"filter"`
	MQTT   MQTTOpt   `mapstructure:"mqtt"`
	Web    WebOpt    `mapstructure:"web"`
	IMU    IMUOpt    `mapstructure:"imu"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.databits", 8)
	v.SetDefault("serial.stopbits", 1)
	v.SetDefault("serial.parity", "none")
	v.SetDefault("serial.rtscts", false)
	v.SetDefault("serial.timeout_ms", 100)

	v.SetDefault("decode.format", "ascii")

	v.SetDefault("filter.alpha", 0.65)
	v.SetDefault("filter.gyro_weight", 0.55)
	v.SetDefault("filter.adaptive", false)
	v.SetDefault("filter.alpha_min", 0.60)
	v.SetDefault("filter.alpha_max", 0.75)
	v.SetDefault("filter.gyro_min", 0.50)
	v.SetDefault("filter.gyro_max", 0.65)

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id_producer", "quatpipe-producer")
	v.SetDefault("mqtt.client_id_console", "quatpipe-console")
	v.SetDefault("mqtt.client_id_web", "quatpipe-web")
	v.SetDefault("mqtt.topic_sample", "quat/sample")
	v.SetDefault("mqtt.topic_rate", "quat/rate")

	v.SetDefault("web.addr", ":8080")

	v.SetDefault("imu.spi_device", "/dev/spidev0.0")
	v.SetDefault("imu.cs_pin", "GPIO8")
	v.SetDefault("imu.sample_interval_ms", 10)
}

// Load reads the configuration. An empty path searches the usual locations
// and treats a missing file as "use the defaults"; an explicit path must
// exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/quatpipe")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debugf("no config file found, using defaults: %v", err)
	} else {
		log.Infof("using config file %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
