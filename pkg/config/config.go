// Package config loads the YAML configuration shared by climate-node and
// climate-coordinator. Values come from built-in defaults, then the file,
// then CLIMATE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CLIMATE_"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the root configuration.
type Config struct {
	Node        NodeConfig        `yaml:"node"`
	Sensor      SensorConfig      `yaml:"sensor"`
	Network     NetworkConfig     `yaml:"network"`
	Storage     StorageConfig     `yaml:"storage"`
	Logging     LoggingConfig     `yaml:"logging"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
}

// NodeConfig describes the sensor node application.
type NodeConfig struct {
	Endpoint uint8 `yaml:"endpoint"`
	// IEEEAddress in hex; empty picks a random address.
	IEEEAddress    string        `yaml:"ieee_address"`
	TxPower        int8          `yaml:"tx_power"`
	ReportInterval time.Duration `yaml:"report_interval"`
	Manufacturer   string        `yaml:"manufacturer"`
	Model          string        `yaml:"model"`

	// JoinPollInterval is how often sampling checks for the first join.
	JoinPollInterval time.Duration `yaml:"join_poll_interval"`

	// Attribute reporting of both measured values. ReportableChange is in
	// hundredths of a unit; a zero max interval disables periodic reports.
	ReportMinInterval time.Duration `yaml:"report_min_interval"`
	ReportMaxInterval time.Duration `yaml:"report_max_interval"`
	ReportableChange  uint64        `yaml:"reportable_change"`
}

// SensorConfig selects the humidity/temperature sensor.
type SensorConfig struct {
	// Bus is the periph I2C bus name; empty opens the first bus.
	Bus     string `yaml:"bus"`
	Address uint16 `yaml:"address"`
	// Simulated replaces the sensor with an in-process simulator.
	Simulated   bool    `yaml:"simulated"`
	Temperature float64 `yaml:"temperature"`
	Humidity    float64 `yaml:"humidity"`
}

// NetworkConfig describes the radio link.
type NetworkConfig struct {
	// Listen is the local UDP address of the radio link.
	Listen string `yaml:"listen"`
	// Coordinator is the coordinator's UDP address, used by the node.
	Coordinator     string        `yaml:"coordinator"`
	PANID           uint16        `yaml:"pan_id"`
	Channel         uint8         `yaml:"channel"`
	SteeringTimeout time.Duration `yaml:"steering_timeout"`
}

// StorageConfig locates persistent state.
type StorageConfig struct {
	// Path of the SQLite database; empty keeps state in memory.
	Path string `yaml:"path"`
}

// LoggingConfig sets log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MQTTConfig configures the coordinator's MQTT bridge.
type MQTTConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	BaseTopic string `yaml:"base_topic"`
	QoS       int    `yaml:"qos"`
}

// InfluxDBConfig configures the coordinator's InfluxDB bridge.
type InfluxDBConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     uint          `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// CoordinatorConfig configures climate-coordinator.
type CoordinatorConfig struct {
	// Listen is the coordinator's UDP radio address.
	Listen string `yaml:"listen"`

	// PermitJoin opens the network for this long at startup; zero keeps
	// it closed.
	PermitJoin time.Duration `yaml:"permit_join"`
	MaxDevices int           `yaml:"max_devices"`
	// Devices maps IEEE addresses (hex) to friendly names.
	Devices map[string]string `yaml:"devices"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Endpoint:       1,
			TxPower:        3,
			ReportInterval: 30 * time.Second,
			Manufacturer:   "DIY",
			Model:          "XIAO-SHTC3",

			JoinPollInterval:  2 * time.Second,
			ReportMinInterval: 10 * time.Second,
			ReportMaxInterval: 300 * time.Second,
			ReportableChange:  10,
		},
		Sensor: SensorConfig{
			Address:     0x70,
			Temperature: 21.5,
			Humidity:    45,
		},
		Network: NetworkConfig{
			Listen:          ":0",
			Coordinator:     "127.0.0.1:17754",
			PANID:           0x1A62,
			Channel:         11,
			SteeringTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		MQTT: MQTTConfig{
			Broker:    "tcp://localhost:1883",
			BaseTopic: "zigbee2mqtt",
			QoS:       1,
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "climate",
			BatchSize:     100,
			FlushInterval: 10 * time.Second,
		},
		Coordinator: CoordinatorConfig{
			Listen:     ":17754",
			PermitJoin: 5 * time.Minute,
			MaxDevices: 32,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies CLIMATE_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []string
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("NODE_IEEE_ADDRESS", &cfg.Node.IEEEAddress)
	duration("NODE_REPORT_INTERVAL", &cfg.Node.ReportInterval)
	str("SENSOR_BUS", &cfg.Sensor.Bus)
	boolean("SENSOR_SIMULATED", &cfg.Sensor.Simulated)
	str("NETWORK_LISTEN", &cfg.Network.Listen)
	str("NETWORK_COORDINATOR", &cfg.Network.Coordinator)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("LOGGING_LEVEL", &cfg.Logging.Level)
	boolean("MQTT_ENABLED", &cfg.MQTT.Enabled)
	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_USERNAME", &cfg.MQTT.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Password)
	boolean("INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled)
	str("INFLUXDB_URL", &cfg.InfluxDB.URL)
	str("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)
	str("COORDINATOR_LISTEN", &cfg.Coordinator.Listen)
	duration("COORDINATOR_PERMIT_JOIN", &cfg.Coordinator.PermitJoin)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Node.Endpoint == 0 || c.Node.Endpoint > 240 {
		errs = append(errs, "node.endpoint must be between 1 and 240")
	}
	if c.Node.TxPower < -24 || c.Node.TxPower > 20 {
		errs = append(errs, "node.tx_power must be between -24 and 20 dBm")
	}
	if c.Node.ReportInterval <= 0 {
		errs = append(errs, "node.report_interval must be positive")
	}
	if c.Node.JoinPollInterval <= 0 {
		errs = append(errs, "node.join_poll_interval must be positive")
	}
	if c.Node.ReportMinInterval < 0 ||
		(c.Node.ReportMaxInterval != 0 && c.Node.ReportMaxInterval < c.Node.ReportMinInterval) {
		errs = append(errs, "node.report_max_interval must not be below node.report_min_interval")
	}
	if c.Node.IEEEAddress != "" {
		if _, err := ParseIEEE(c.Node.IEEEAddress); err != nil {
			errs = append(errs, fmt.Sprintf("node.ieee_address: %v", err))
		}
	}
	if c.Sensor.Address == 0 || c.Sensor.Address > 0x7F {
		errs = append(errs, "sensor.address must be a 7-bit address")
	}
	if c.Network.Channel < 11 || c.Network.Channel > 26 {
		errs = append(errs, "network.channel must be between 11 and 26")
	}
	if c.Network.PANID == 0 || c.Network.PANID == 0xFFFF {
		errs = append(errs, "network.pan_id must not be 0x0000 or 0xFFFF")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level: %v", err))
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when mqtt is enabled")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}
	if c.Coordinator.Listen == "" {
		errs = append(errs, "coordinator.listen is required")
	}
	if c.Coordinator.MaxDevices < 0 {
		errs = append(errs, "coordinator.max_devices must not be negative")
	}
	for addr := range c.Coordinator.Devices {
		if _, err := ParseIEEE(addr); err != nil {
			errs = append(errs, fmt.Sprintf("coordinator.devices: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// ParseIEEE parses an extended address written as hex, with or without a
// 0x prefix and colon separators.
func ParseIEEE(s string) (uint64, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ":", "")
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "0x"), "0X")
	if clean == "" || len(clean) > 16 {
		return 0, fmt.Errorf("invalid IEEE address %q", s)
	}
	v, err := strconv.ParseUint(clean, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid IEEE address %q", s)
	}
	return v, nil
}

// DeviceNames returns the coordinator's friendly names keyed by address.
// Invalid keys are skipped; Validate reports them.
func (c *Config) DeviceNames() map[uint64]string {
	out := make(map[uint64]string, len(c.Coordinator.Devices))
	for addr, name := range c.Coordinator.Devices {
		if v, err := ParseIEEE(addr); err == nil {
			out[v] = name
		}
	}
	return out
}
