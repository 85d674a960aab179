package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store          StoreConfig          `yaml:"store" mapstructure:"store"`
	FeatureService FeatureServiceConfig `yaml:"featureservice" mapstructure:"featureservice"`
	Import         ImportConfig         `yaml:"import" mapstructure:"import"`
	Server         ServerConfig         `yaml:"server" mapstructure:"server"`
	Monitoring     MonitoringConfig     `yaml:"monitoring" mapstructure:"monitoring"`
	Log            LogConfig            `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures where market areas are persisted. Driver is one of
// sqlite, postgres or api.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	APIBaseURL  string `yaml:"api_base_url" mapstructure:"api_base_url"`
	APIToken    string `yaml:"api_token" mapstructure:"api_token"`
}

// FeatureServiceConfig configures the geography feature service.
type FeatureServiceConfig struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	LayersFile     string        `yaml:"layers_file" mapstructure:"layers_file"`
	MaxRecordCount int           `yaml:"max_record_count" mapstructure:"max_record_count"`
	TimeoutSecs    int           `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit      float64       `yaml:"rate_limit" mapstructure:"rate_limit"`
	Retry          RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit        CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
}

// RetryConfig configures exponential backoff.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures the per-layer circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// ImportConfig holds the fallbacks applied to blank spreadsheet cells.
type ImportConfig struct {
	ProjectID           string  `yaml:"project_id" mapstructure:"project_id"`
	DefaultState        string  `yaml:"default_state" mapstructure:"default_state"`
	DefaultBlockState   string  `yaml:"default_block_state" mapstructure:"default_block_state"`
	DefaultCounty       string  `yaml:"default_county" mapstructure:"default_county"`
	DefaultLatitude     float64 `yaml:"default_latitude" mapstructure:"default_latitude"`
	DefaultLongitude    float64 `yaml:"default_longitude" mapstructure:"default_longitude"`
	DefaultRadiusMiles  float64 `yaml:"default_radius_miles" mapstructure:"default_radius_miles"`
	DefaultDriveMinutes float64 `yaml:"default_drive_minutes" mapstructure:"default_drive_minutes"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// MonitoringConfig configures import-batch alerting for the API server.
type MonitoringConfig struct {
	Enabled                bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL             string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold   float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ItemErrorRateThreshold float64 `yaml:"item_error_rate_threshold" mapstructure:"item_error_rate_threshold"`
	LookbackWindowHours    int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs      int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml and MARKETAREA_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MARKETAREA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "marketareas.db")
	v.SetDefault("featureservice.base_url", "https://tigerweb.geo.census.gov/arcgis/rest/services/TIGERweb/tigerWMS_ACS2024/MapServer")
	v.SetDefault("featureservice.max_record_count", 2000)
	v.SetDefault("featureservice.timeout_secs", 60)
	v.SetDefault("featureservice.rate_limit", 5.0)
	v.SetDefault("featureservice.retry.max_attempts", 3)
	v.SetDefault("featureservice.retry.initial_backoff_ms", 500)
	v.SetDefault("featureservice.retry.max_backoff_ms", 10000)
	v.SetDefault("featureservice.retry.multiplier", 2.0)
	v.SetDefault("featureservice.retry.jitter_fraction", 0.2)
	v.SetDefault("featureservice.circuit.failure_threshold", 5)
	v.SetDefault("featureservice.circuit.reset_timeout_secs", 30)
	v.SetDefault("import.project_id", "default")
	v.SetDefault("import.default_state", "CA")
	v.SetDefault("import.default_block_state", "06")
	v.SetDefault("import.default_county", "Orange County")
	v.SetDefault("import.default_latitude", 33.7175)
	v.SetDefault("import.default_longitude", -117.8311)
	v.SetDefault("import.default_radius_miles", 5.0)
	v.SetDefault("import.default_drive_minutes", 15.0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.item_error_rate_threshold", 0.5)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "import", "migrate", "serve":
		errs = append(errs, c.validateStore()...)
	case "preview", "layers", "template":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode == "import" || mode == "serve" {
		if c.FeatureService.BaseURL == "" {
			errs = append(errs, "featureservice.base_url is required")
		}
		if c.FeatureService.MaxRecordCount <= 0 {
			errs = append(errs, "featureservice.max_record_count must be > 0")
		}
		if c.FeatureService.RateLimit <= 0 {
			errs = append(errs, "featureservice.rate_limit must be > 0")
		}
	}
	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}
	if mode == "serve" && c.Monitoring.Enabled {
		if c.Monitoring.FailureRateThreshold < 0 || c.Monitoring.FailureRateThreshold > 1 {
			errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
		}
		if c.Monitoring.ItemErrorRateThreshold < 0 || c.Monitoring.ItemErrorRateThreshold > 1 {
			errs = append(errs, "monitoring.item_error_rate_threshold must be between 0 and 1")
		}
	}
	if c.Import.DefaultLatitude < -90 || c.Import.DefaultLatitude > 90 {
		errs = append(errs, "import.default_latitude must be between -90 and 90")
	}
	if c.Import.DefaultLongitude < -180 || c.Import.DefaultLongitude > 180 {
		errs = append(errs, "import.default_longitude must be between -180 and 180")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required"}
		}
	case "api":
		if c.Store.APIBaseURL == "" {
			return []string{"store.api_base_url is required"}
		}
	default:
		return []string{"store.driver must be one of sqlite, postgres, api"}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
