package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/plantlens/plantlens/pkg/types"
	"github.com/plantlens/plantlens/server/internal/analysis"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort      = 8080
	DefaultDatasetTTL    = 24 * time.Hour
	DefaultMaxRows       = 100000
	DefaultSourceTimeout = 10 * time.Second
	DefaultAlertCooldown = 15 * time.Minute

	DefaultElectricityPrice = 3.5
	DefaultTargetOEE        = 0.85
	DefaultUnitMargin       = 10
)

// Config is the top-level server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Sources  []Source       `yaml:"sources"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Datasets controls in-memory dataset retention.
	Datasets DatasetConfig `yaml:"datasets"`

	// CORSOrigins lists browser origins allowed to call the API.
	// Empty means any origin.
	CORSOrigins []string `yaml:"cors_origins"`
}

// AuthConfig controls client authentication on the REST API.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// DatasetConfig controls dataset retention.
type DatasetConfig struct {
	// TTL is how long a dataset survives after its last write. Default: 24h.
	TTL time.Duration `yaml:"ttl"`

	// MaxRows caps the rows one dataset may hold. Default: 100000.
	MaxRows int `yaml:"max_rows"`
}

// AnalysisConfig holds the defaults applied to every analysis run.
type AnalysisConfig struct {
	// Parameters are used when a request does not carry its own.
	Parameters types.Parameters `yaml:"parameters"`

	// Aliases maps extra column labels to canonical field names,
	// e.g. "asset tag: entity_id".
	Aliases map[string]string `yaml:"aliases"`
}

// Source describes one machine exporter serving the Prometheus text format.
type Source struct {
	// ID is a unique, human-readable identifier used in the collect endpoint.
	ID string `yaml:"id"`

	// Endpoint is the full URL of the exporter's metrics page.
	Endpoint string `yaml:"endpoint"`

	// Facility labels samples that carry no facility label of their own.
	Facility string `yaml:"facility"`

	// Timeout bounds one collection. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures how the server authenticates to this exporter.
	Auth SourceAuth `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// SourceAuth specifies the authentication mode for an exporter.
type SourceAuth struct {
	// Mode is one of: apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header the API key is sent in (apikey mode).
	Header string `yaml:"header"`
	// KeyEnv is the environment variable holding the API key (apikey mode).
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the environment variable holding the token (bearer mode).
	TokenEnv string `yaml:"token_env"`

	// Username is the literal username (basic mode).
	Username string `yaml:"username"`
	// PasswordEnv is the environment variable holding the password (basic mode).
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a SourceAuth) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a SourceAuth) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a SourceAuth) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one condition evaluated against every group of a report.
type AlertRule struct {
	// Name is the human-readable alert identifier. Together with the dataset
	// and group it forms the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "mean_oee < 0.7", "cv > 15",
	// "total_loss > 5000", "tier == critical".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	for i := range cfg.Sources {
		if cfg.Sources[i].Timeout == 0 {
			cfg.Sources[i].Timeout = DefaultSourceTimeout
		}
	}
	for i := range cfg.Alerts.Rules {
		if cfg.Alerts.Rules[i].Cooldown == 0 {
			cfg.Alerts.Rules[i].Cooldown = DefaultAlertCooldown
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return defaults()
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			Datasets: DatasetConfig{
				TTL:     DefaultDatasetTTL,
				MaxRows: DefaultMaxRows,
			},
		},
		Analysis: AnalysisConfig{
			Parameters: types.Parameters{
				ElectricityPrice: DefaultElectricityPrice,
				TargetOEE:        DefaultTargetOEE,
				UnitMargin:       DefaultUnitMargin,
			},
		},
	}
}

var canonicalFields = map[string]bool{
	types.FieldDate:       true,
	types.FieldFacilityID: true,
	types.FieldEntityID:   true,
	types.FieldOEERaw:     true,
	types.FieldOutputQty:  true,
	types.FieldEnergyKWh:  true,
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", cfg.Server.HTTPPort)
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", cfg.Server.Auth.Mode)
	}
	if cfg.Server.Auth.Mode == "apikey" && cfg.Server.Auth.KeyEnv == "" {
		return fmt.Errorf("server.auth.key_env is required when mode is apikey")
	}
	if cfg.Server.Datasets.TTL < 0 {
		return fmt.Errorf("server.datasets.ttl must not be negative")
	}
	if cfg.Server.Datasets.MaxRows < 0 {
		return fmt.Errorf("server.datasets.max_rows must not be negative")
	}

	if err := analysis.ValidateParameters(cfg.Analysis.Parameters); err != nil {
		return fmt.Errorf("analysis.%w", err)
	}
	for label, field := range cfg.Analysis.Aliases {
		if !canonicalFields[field] {
			return fmt.Errorf("analysis.aliases[%q]: %q is not a canonical field", label, field)
		}
	}

	seen := make(map[string]bool, len(cfg.Sources))
	for i, s := range cfg.Sources {
		if s.ID == "" {
			return fmt.Errorf("sources[%d].id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sources[%d].id %q is duplicated", i, s.ID)
		}
		seen[s.ID] = true
		if s.Endpoint == "" {
			return fmt.Errorf("sources[%d] (%s): endpoint is required", i, s.ID)
		}
		if s.Timeout < 0 {
			return fmt.Errorf("sources[%d] (%s): timeout must not be negative", i, s.ID)
		}
		switch s.Auth.Mode {
		case "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] (%s): auth.mode %q unknown: want apikey|bearer|basic|none", i, s.ID, s.Auth.Mode)
		}
	}

	for i, r := range cfg.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("alerts.rules[%d].name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("alerts.rules[%d] (%s): condition is required", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info":
		default:
			return fmt.Errorf("alerts.rules[%d] (%s): severity %q unknown: want critical|warning|info", i, r.Name, r.Severity)
		}
	}
	for i, w := range cfg.Alerts.Webhooks {
		switch w.Type {
		case "teams", "slack", "http":
		default:
			return fmt.Errorf("alerts.webhooks[%d].type %q unknown: want teams|slack|http", i, w.Type)
		}
	}
	return nil
}
