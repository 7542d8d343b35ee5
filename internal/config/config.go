// Package config loads application configuration from file and environment
// and owns global logger setup.
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
	Gmail       GmailConfig       `yaml:"gmail" mapstructure:"gmail"`
	RecordStore RecordStoreConfig `yaml:"record_store" mapstructure:"record_store"`
	Importer    ImporterConfig    `yaml:"importer" mapstructure:"importer"`
	Ledger      LedgerConfig      `yaml:"ledger" mapstructure:"ledger"`
	Report      ReportConfig      `yaml:"report" mapstructure:"report"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Schedule    ScheduleConfig    `yaml:"schedule" mapstructure:"schedule"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// GmailConfig holds OAuth credentials and inbox settings.
type GmailConfig struct {
	ClientID       string  `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret   string  `yaml:"client_secret" mapstructure:"client_secret"`
	RefreshToken   string  `yaml:"refresh_token" mapstructure:"refresh_token"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	TokenURL       string  `yaml:"token_url" mapstructure:"token_url"`
	Query          string  `yaml:"query" mapstructure:"query"`
	ProcessedLabel string  `yaml:"processed_label" mapstructure:"processed_label"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// RecordStoreConfig holds Salesforce JWT auth settings.
type RecordStoreConfig struct {
	ClientID  string  `yaml:"client_id" mapstructure:"client_id"`
	Username  string  `yaml:"username" mapstructure:"username"`
	KeyPath   string  `yaml:"key_path" mapstructure:"key_path"`
	LoginURL  string  `yaml:"login_url" mapstructure:"login_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ImporterConfig tunes the run loop.
type ImporterConfig struct {
	BatchSize       int    `yaml:"batch_size" mapstructure:"batch_size"`
	BudgetAllowance int    `yaml:"budget_allowance" mapstructure:"budget_allowance"`
	BudgetThreshold int    `yaml:"budget_threshold" mapstructure:"budget_threshold"`
	MappingFile     string `yaml:"mapping_file" mapstructure:"mapping_file"`
}

// LedgerConfig configures the run ledger backend.
type LedgerConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// ReportConfig configures end-of-run reporting.
type ReportConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// ScheduleConfig configures the daemon.
type ScheduleConfig struct {
	Cron string `yaml:"cron" mapstructure:"cron"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration required for a command mode is
// present. Modes: "import" (run and daemon), "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	switch mode {
	case "import":
		if c.Gmail.ClientID == "" {
			missing = append(missing, "gmail.client_id is required")
		}
		if c.Gmail.ClientSecret == "" {
			missing = append(missing, "gmail.client_secret is required")
		}
		if c.Gmail.RefreshToken == "" {
			missing = append(missing, "gmail.refresh_token is required")
		}
		if c.RecordStore.ClientID == "" {
			missing = append(missing, "record_store.client_id is required")
		}
		if c.RecordStore.Username == "" {
			missing = append(missing, "record_store.username is required")
		}
		if c.RecordStore.KeyPath == "" {
			missing = append(missing, "record_store.key_path is required")
		}
		if c.Importer.BudgetThreshold >= c.Importer.BudgetAllowance {
			missing = append(missing, "importer.budget_threshold must be below importer.budget_allowance")
		}
	case "serve":
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Ledger.Driver != "sqlite" && c.Ledger.Driver != "postgres" {
		missing = append(missing, "ledger.driver must be sqlite or postgres")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("gmail.base_url", "https://gmail.googleapis.com/gmail/v1")
	v.SetDefault("gmail.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("gmail.query", "label:intake is:unread")
	v.SetDefault("gmail.processed_label", "IMPORTED")
	v.SetDefault("gmail.rate_limit", 5)
	v.SetDefault("record_store.login_url", "https://login.salesforce.com")
	v.SetDefault("record_store.rate_limit", 5)
	v.SetDefault("importer.batch_size", 25)
	v.SetDefault("importer.budget_allowance", 10000)
	v.SetDefault("importer.budget_threshold", 1000)
	v.SetDefault("ledger.driver", "sqlite")
	v.SetDefault("ledger.dsn", "intake.db")
	v.SetDefault("schedule.cron", "*/15 * * * *")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
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
