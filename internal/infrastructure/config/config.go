package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for FishControl Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	System     SystemConfig     `yaml:"system"`
	Database   DatabaseConfig   `yaml:"database"`
	Controller ControllerConfig `yaml:"controller"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SystemConfig contains instance-level information.
type SystemConfig struct {
	Name    string `yaml:"name"`
	DataDir string `yaml:"data_dir"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ControllerConfig contains settings for reaching the embedded controller.
type ControllerConfig struct {
	// BaseURL is the root URL of the controller's HTTP server.
	// The controller runs an access point and always answers on its
	// gateway address, so the default rarely changes.
	BaseURL string `yaml:"base_url"`

	// SendTimeout bounds a single command batch send, in seconds.
	SendTimeout int `yaml:"send_timeout"`

	// ProbeInterval is how often the health monitor polls the
	// controller's status endpoint, in seconds. 0 disables the monitor.
	ProbeInterval int `yaml:"probe_interval"`

	Discovery DiscoveryConfig `yaml:"discovery"`
}

// DiscoveryConfig contains settings for locating the controller on its subnet.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Subnet is the first three octets of the network to sweep, e.g. "192.168.4".
	Subnet string `yaml:"subnet"`

	// FirstHost and LastHost bound the swept host range (inclusive).
	FirstHost int `yaml:"first_host"`
	LastHost  int `yaml:"last_host"`

	// ProbeTimeout bounds each probe, in milliseconds.
	ProbeTimeout int `yaml:"probe_timeout"`
}

// SchedulerConfig contains execution scheduler and command pipeline settings.
type SchedulerConfig struct {
	// TickInterval is the scheduler's evaluation cadence, in milliseconds.
	TickInterval int `yaml:"tick_interval"`

	// ConflictWindow is the minimum spacing between accepted commands
	// for the same device, in milliseconds.
	ConflictWindow int `yaml:"conflict_window"`

	// LockTTL is how long a device's advisory lock is held during
	// dispatch, in milliseconds.
	LockTTL int `yaml:"lock_ttl"`

	// DispatchQueueSize bounds the number of batches waiting for the
	// dispatch worker before new batches are dropped.
	DispatchQueueSize int `yaml:"dispatch_queue_size"`

	// MaxPower is the highest accepted power value, in per cent.
	MaxPower int `yaml:"max_power"`

	// MaxActionDuration is the longest accepted timed action, in seconds.
	MaxActionDuration int `yaml:"max_action_duration"`

	// MaxActivePWM is the cap on simultaneously driven PWM devices.
	// A power command is rejected once accepting it would bring the
	// number of PWM devices with a non-zero value up to this cap.
	MaxActivePWM int `yaml:"max_active_pwm"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`

	// MaxBodySize limits request bodies, in bytes.
	MaxBodySize int64 `yaml:"max_body_size"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The bridge is optional; when disabled no broker connection is made.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FISHCONTROL_SECTION_KEY
// For example: FISHCONTROL_DATABASE_PATH, FISHCONTROL_CONTROLLER_BASE_URL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			Name:    "fishcontrol",
			DataDir: "./data",
		},
		Database: DatabaseConfig{
			Path:        "./data/fishcontrol.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Controller: ControllerConfig{
			BaseURL:       "http://192.168.4.1",
			SendTimeout:   5,
			ProbeInterval: 10,
			Discovery: DiscoveryConfig{
				Subnet:       "192.168.4",
				FirstHost:    1,
				LastHost:     10,
				ProbeTimeout: 500,
			},
		},
		Scheduler: SchedulerConfig{
			TickInterval:      100,
			ConflictWindow:    50,
			LockTTL:           50,
			DispatchQueueSize: 64,
			MaxPower:          100,
			MaxActionDuration: 3600,
			MaxActivePWM:      4,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			MaxBodySize: 1 << 20,
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fishcontrol-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FISHCONTROL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("FISHCONTROL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Controller
	if v := os.Getenv("FISHCONTROL_CONTROLLER_BASE_URL"); v != "" {
		cfg.Controller.BaseURL = v
	}

	// API
	if v := os.Getenv("FISHCONTROL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FISHCONTROL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("FISHCONTROL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FISHCONTROL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FISHCONTROL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("FISHCONTROL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// Controller validation
	if c.Controller.BaseURL == "" {
		errs = append(errs, "controller.base_url is required")
	}
	if !strings.HasPrefix(c.Controller.BaseURL, "http://") && !strings.HasPrefix(c.Controller.BaseURL, "https://") {
		errs = append(errs, "controller.base_url must start with http:// or https://")
	}
	if c.Controller.SendTimeout < 1 {
		errs = append(errs, "controller.send_timeout must be at least 1 second")
	}

	// Scheduler validation
	if c.Scheduler.TickInterval < 1 {
		errs = append(errs, "scheduler.tick_interval must be at least 1ms")
	}
	if c.Scheduler.ConflictWindow < 0 {
		errs = append(errs, "scheduler.conflict_window must not be negative")
	}
	if c.Scheduler.LockTTL < 1 {
		errs = append(errs, "scheduler.lock_ttl must be at least 1ms")
	}
	if c.Scheduler.DispatchQueueSize < 1 {
		errs = append(errs, "scheduler.dispatch_queue_size must be at least 1")
	}
	if c.Scheduler.MaxPower < 1 || c.Scheduler.MaxPower > 100 {
		errs = append(errs, "scheduler.max_power must be between 1 and 100")
	}
	if c.Scheduler.MaxActivePWM < 1 {
		errs = append(errs, "scheduler.max_active_pwm must be at least 1")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set FISHCONTROL_INFLUXDB_TOKEN)")
		}
	}

	// Discovery validation
	if c.Controller.Discovery.Enabled {
		d := c.Controller.Discovery
		if d.Subnet == "" {
			errs = append(errs, "controller.discovery.subnet is required when discovery is enabled")
		}
		if d.FirstHost < 1 || d.LastHost > 254 || d.FirstHost > d.LastHost {
			errs = append(errs, "controller.discovery host range must satisfy 1 <= first_host <= last_host <= 254")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetSendTimeout returns the controller send timeout as a Duration.
func (c *Config) GetSendTimeout() time.Duration {
	return time.Duration(c.Controller.SendTimeout) * time.Second
}

// GetProbeInterval returns the controller probe interval as a Duration.
func (c *Config) GetProbeInterval() time.Duration {
	return time.Duration(c.Controller.ProbeInterval) * time.Second
}

// GetTickInterval returns the scheduler tick cadence as a Duration.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Scheduler.TickInterval) * time.Millisecond
}

// GetConflictWindow returns the conflict window as a Duration.
func (c *Config) GetConflictWindow() time.Duration {
	return time.Duration(c.Scheduler.ConflictWindow) * time.Millisecond
}

// GetLockTTL returns the device lock TTL as a Duration.
func (c *Config) GetLockTTL() time.Duration {
	return time.Duration(c.Scheduler.LockTTL) * time.Millisecond
}

// GetMaxActionDuration returns the timed action cap as a Duration.
func (c *Config) GetMaxActionDuration() time.Duration {
	return time.Duration(c.Scheduler.MaxActionDuration) * time.Second
}
