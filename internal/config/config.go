package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Budget is a rate-limit allowance for one operation class.
type Budget struct {
	// MaxCalls is the number of calls allowed inside Window.
	MaxCalls int `yaml:"max_calls" mapstructure:"max_calls"`
	// Window is the sliding window length.
	Window time.Duration `yaml:"window" mapstructure:"window"`
}

// Engine holds the lifecycle engine settings.
type Engine struct {
	// ScanInterval is the trigger scan period.
	ScanInterval time.Duration `yaml:"scan_interval" mapstructure:"scan_interval"`
	// Timezone is the IANA zone alarm times are interpreted in.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
	// DefaultOwner is assigned to alarms created without an owner.
	DefaultOwner string `yaml:"default_owner" mapstructure:"default_owner" validate:"required"`
	// PreloadOwners are loaded when the server starts.
	PreloadOwners []string `yaml:"preload_owners" mapstructure:"preload_owners"`
	// AllowBattleSnooze lets battle-linked alarms snooze.
	AllowBattleSnooze bool `yaml:"allow_battle_snooze" mapstructure:"allow_battle_snooze"`
	// SingleInstance refuses to start when another engine process is running.
	SingleInstance bool `yaml:"single_instance" mapstructure:"single_instance"`
	// ScanLogLevel overrides the log level of the trigger scan.
	ScanLogLevel string `yaml:"scan_log_level" mapstructure:"scan_log_level" validate:"in:debug,info,warn,warning,error"`
	// RateLimits maps operation classes to budgets.
	RateLimits map[string]Budget `yaml:"rate_limits" mapstructure:"rate_limits"`
}

// Storage selects the repository backend.
type Storage struct {
	// Backend is file, postgres or memory.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required|in:file,postgres,memory"`
	// Dir is the data directory of the file backend.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// PostgresDSN is the connection string of the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
}

// RateLimiter selects the throttle backend.
type RateLimiter struct {
	// Backend is memory or redis.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required|in:memory,redis"`
	// RedisAddr is host:port of the redis server.
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
	// RedisPassword authenticates against redis.
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	// RedisDB is the redis database index.
	RedisDB int `yaml:"redis_db" mapstructure:"redis_db"`
	// KeyPrefix namespaces limiter keys.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// Notifications selects the notification scheduler backend.
type Notifications struct {
	// Backend is memory or mqtt.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"required|in:memory,mqtt"`
	// MQTTBroker is the broker URL, e.g. tcp://127.0.0.1:1883.
	MQTTBroker string `yaml:"mqtt_broker" mapstructure:"mqtt_broker"`
	// MQTTClientID identifies the engine at the broker.
	MQTTClientID string `yaml:"mqtt_client_id" mapstructure:"mqtt_client_id"`
	// MQTTTopic is the topic prefix for schedule and cancel messages.
	MQTTTopic string `yaml:"mqtt_topic" mapstructure:"mqtt_topic"`
	// MQTTUsername and MQTTPassword authenticate at the broker.
	MQTTUsername string `yaml:"mqtt_username" mapstructure:"mqtt_username"`
	MQTTPassword string `yaml:"mqtt_password" mapstructure:"mqtt_password"`
}

// Battle configures the battle service client.
type Battle struct {
	// BaseURL of the battle service; empty disables battle features.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// Timeout per battle request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Auth configures requester authentication on the gRPC API.
type Auth struct {
	// JWTSecret enables HS256 bearer tokens when set.
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// Config holds the settings shared by the engine binary and its CLI client.
type Config struct {
	// ServerAddress is the gRPC address of the engine.
	ServerAddress string `yaml:"server_addr" mapstructure:"server_addr" validate:"required"`
	// Timeout is the duration for RPC calls made by the CLI.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"in:debug,info,warn,warning,error"`
	// LogFormat is console or json.
	LogFormat string `yaml:"log_format" mapstructure:"log_format" validate:"in:console,json"`
	// MetricsAddress serves Prometheus metrics when set.
	MetricsAddress string `yaml:"metrics_addr" mapstructure:"metrics_addr"`

	Engine        Engine        `yaml:"engine" mapstructure:"engine"`
	Storage       Storage       `yaml:"storage" mapstructure:"storage"`
	RateLimiter   RateLimiter   `yaml:"rate_limiter" mapstructure:"rate_limiter"`
	Notifications Notifications `yaml:"notifications" mapstructure:"notifications"`
	Battle        Battle        `yaml:"battle" mapstructure:"battle"`
	Auth          Auth          `yaml:"auth" mapstructure:"auth"`
}

const (
	// DefaultConfigFilename is the default settings file name.
	DefaultConfigFilename = "alarm-engine.yaml"
	// DefaultServerAddress is the default gRPC address.
	DefaultServerAddress = "127.0.0.1:50051"
	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second
	// DefaultScanInterval is the default trigger scan period.
	DefaultScanInterval = time.Minute
	// DefaultDataDir is the default directory of the file backend.
	DefaultDataDir = "alarm-data"
	// DefaultMQTTTopic is the default topic prefix for notifications.
	DefaultMQTTTopic = "alarm-engine/notifications"
	// DefaultFilePermissions is the permission for config and data files.
	DefaultFilePermissions = 0o600
	// DefaultDirPermissions is the permission for data directories.
	DefaultDirPermissions = 0o700
	// EnvPrefix prefixes environment overrides.
	EnvPrefix = "ALARM_ENGINE"
)

// Operation classes guarded by the rate limiter.
const (
	OperationLoad    = "load_alarms"
	OperationSave    = "save_alarms"
	OperationDismiss = "dismiss_alarm"
	OperationSnooze  = "snooze_alarm"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errPostgresDSNRequired is returned when the postgres backend has no DSN.
	errPostgresDSNRequired = errors.New("storage.postgres_dsn must be provided for the postgres backend")
	// errRedisAddrRequired is returned when the redis limiter has no address.
	errRedisAddrRequired = errors.New("rate_limiter.redis_addr must be provided for the redis backend")
	// errMQTTBrokerRequired is returned when the mqtt scheduler has no broker.
	errMQTTBrokerRequired = errors.New("notifications.mqtt_broker must be provided for the mqtt backend")
	// errInvalidBudget is returned for non-positive rate limit values.
	errInvalidBudget = errors.New("rate limit budget must have positive max_calls and window")
)

// DefaultBudgets returns the rate limits applied when none are configured.
func DefaultBudgets() map[string]Budget {
	return map[string]Budget{
		OperationLoad:    {MaxCalls: 20, Window: time.Minute},
		OperationSave:    {MaxCalls: 50, Window: time.Minute},
		OperationDismiss: {MaxCalls: 30, Window: time.Minute},
		OperationSnooze:  {MaxCalls: 30, Window: time.Minute},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{
		ServerAddress: DefaultServerAddress,
		Timeout:       DefaultTimeout,
		LogLevel:      "info",
		LogFormat:     "console",
		Engine: Engine{
			ScanInterval:      DefaultScanInterval,
			Timezone:          "Local",
			DefaultOwner:      "default",
			AllowBattleSnooze: true,
			RateLimits:        DefaultBudgets(),
		},
		Storage: Storage{
			Backend: "file",
			Dir:     DefaultDataDir,
		},
		RateLimiter: RateLimiter{
			Backend:   "memory",
			KeyPrefix: "alarm-engine:ratelimit:",
		},
		Notifications: Notifications{
			Backend:      "memory",
			MQTTClientID: "alarm-engine",
			MQTTTopic:    DefaultMQTTTopic,
		},
		Battle: Battle{
			Timeout: DefaultTimeout,
		},
	}

	return cfg
}

// Load reads configuration from path, applies environment overrides and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	v := viper.New()
	v.SetConfigFile(filepath.Clean(path))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server_addr", d.ServerAddress)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("metrics_addr", d.MetricsAddress)
	v.SetDefault("engine.scan_interval", d.Engine.ScanInterval)
	v.SetDefault("engine.timezone", d.Engine.Timezone)
	v.SetDefault("engine.default_owner", d.Engine.DefaultOwner)
	v.SetDefault("engine.preload_owners", d.Engine.PreloadOwners)
	v.SetDefault("engine.allow_battle_snooze", d.Engine.AllowBattleSnooze)
	v.SetDefault("engine.single_instance", d.Engine.SingleInstance)
	v.SetDefault("engine.scan_log_level", d.Engine.ScanLogLevel)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.dir", d.Storage.Dir)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)
	v.SetDefault("rate_limiter.backend", d.RateLimiter.Backend)
	v.SetDefault("rate_limiter.redis_addr", d.RateLimiter.RedisAddr)
	v.SetDefault("rate_limiter.redis_password", d.RateLimiter.RedisPassword)
	v.SetDefault("rate_limiter.redis_db", d.RateLimiter.RedisDB)
	v.SetDefault("rate_limiter.key_prefix", d.RateLimiter.KeyPrefix)
	v.SetDefault("notifications.backend", d.Notifications.Backend)
	v.SetDefault("notifications.mqtt_broker", d.Notifications.MQTTBroker)
	v.SetDefault("notifications.mqtt_client_id", d.Notifications.MQTTClientID)
	v.SetDefault("notifications.mqtt_topic", d.Notifications.MQTTTopic)
	v.SetDefault("notifications.mqtt_username", d.Notifications.MQTTUsername)
	v.SetDefault("notifications.mqtt_password", d.Notifications.MQTTPassword)
	v.SetDefault("battle.base_url", d.Battle.BaseURL)
	v.SetDefault("battle.timeout", d.Battle.Timeout)
	v.SetDefault("auth.jwt_secret", d.Auth.JWTSecret)
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions: the file may carry secrets.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and formats, filling defaults for empty optional values.
//
//nolint:cyclop // A flat list of checks reads better than a split.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if v := validate.Struct(cfg); !v.Validate() {
		return fmt.Errorf("invalid settings: %w", v.Errors)
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ServerAddress); err != nil {
		return fmt.Errorf("invalid server address: %w", err)
	}

	if cfg.Storage.Backend == "postgres" && cfg.Storage.PostgresDSN == "" {
		return errPostgresDSNRequired
	}

	if cfg.RateLimiter.Backend == "redis" && cfg.RateLimiter.RedisAddr == "" {
		return errRedisAddrRequired
	}

	if cfg.Notifications.Backend == "mqtt" && cfg.Notifications.MQTTBroker == "" {
		return errMQTTBrokerRequired
	}

	for class, budget := range cfg.Engine.RateLimits {
		if budget.MaxCalls <= 0 || budget.Window < time.Millisecond {
			return fmt.Errorf("%w: %s", errInvalidBudget, class)
		}
	}

	return nil
}

// applyDefaults fills optional values left empty.
func applyDefaults(cfg *Config) {
	defaults := Default()

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = defaults.LogFormat
	}

	if cfg.Engine.ScanInterval <= 0 {
		cfg.Engine.ScanInterval = defaults.Engine.ScanInterval
	}

	if cfg.Engine.DefaultOwner == "" {
		cfg.Engine.DefaultOwner = defaults.Engine.DefaultOwner
	}

	if cfg.Engine.RateLimits == nil {
		cfg.Engine.RateLimits = map[string]Budget{}
	}

	for class, budget := range DefaultBudgets() {
		if _, ok := cfg.Engine.RateLimits[class]; !ok {
			cfg.Engine.RateLimits[class] = budget
		}
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}

	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = defaults.Storage.Dir
	}

	if cfg.RateLimiter.Backend == "" {
		cfg.RateLimiter.Backend = defaults.RateLimiter.Backend
	}

	if cfg.RateLimiter.KeyPrefix == "" {
		cfg.RateLimiter.KeyPrefix = defaults.RateLimiter.KeyPrefix
	}

	if cfg.Notifications.Backend == "" {
		cfg.Notifications.Backend = defaults.Notifications.Backend
	}

	if cfg.Notifications.MQTTTopic == "" {
		cfg.Notifications.MQTTTopic = defaults.Notifications.MQTTTopic
	}

	if cfg.Notifications.MQTTClientID == "" {
		cfg.Notifications.MQTTClientID = defaults.Notifications.MQTTClientID
	}

	if cfg.Battle.Timeout <= 0 {
		cfg.Battle.Timeout = defaults.Battle.Timeout
	}
}
