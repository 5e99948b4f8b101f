package appconf

import (
	"fmt"
	"os"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort         = 4000
	defaultRateLimit    = 100
	defaultPollInterval = 60 * time.Second

	// Defaults matching the public endpoints of the two supported backends.
	defaultMotisBaseURL     = "https://api.transitous.org"
	defaultRNVAPIURL        = "https://graphql-sandbox-dds.rnv-online.de/"
	defaultRNVOAuthTemplate = "https://login.microsoftonline.com/%s/oauth2/token"
)

// fileConfig is the YAML document shape. It is mapped to Config after
// validation so the rest of the application works with typed values.
type fileConfig struct {
	Env                 string         `yaml:"env" validate:"omitempty,oneof=development test production"`
	Port                int            `yaml:"port" validate:"gte=0,lte=65535"`
	APIKeys             []string       `yaml:"api_keys"`
	Verbose             bool           `yaml:"verbose"`
	RateLimit           int            `yaml:"rate_limit" validate:"gte=0"`
	PollIntervalSeconds int            `yaml:"poll_interval_seconds" validate:"gte=0"`
	StationDBPath       string         `yaml:"station_db_path"`
	StationsDataPath    string         `yaml:"stations_data_path"`
	RNV                 RNVConfig      `yaml:"rnv"`
	Motis               MotisConfig    `yaml:"motis"`
	Subscriptions       []Subscription `yaml:"subscriptions"`
}

// LoadFromFile loads and validates application configuration from a YAML file.
// Subscription filter patterns are compiled here so that an invalid
// destination regex fails at setup time, never during a poll cycle.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}

	v := validator.New()
	if err := v.Struct(fc); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	for i, sub := range fc.Subscriptions {
		if err := v.Struct(sub); err != nil {
			return Config{}, fmt.Errorf("invalid subscription %d (station %q): %w", i, sub.StationID, err)
		}
		if sub.DestinationRegex != "" {
			// Same engine as the filter layer (regexp2), so patterns
			// accepted here are guaranteed to compile there.
			if _, err := regexp2.Compile(sub.DestinationRegex, regexp2.None); err != nil {
				return Config{}, fmt.Errorf("subscription %d (station %q): invalid destination regex: %w", i, sub.StationID, err)
			}
		}
		if sub.Backend == "rnv" && !fc.RNV.Configured() {
			return Config{}, fmt.Errorf("subscription %d (station %q) uses the rnv backend but no rnv credentials are configured", i, sub.StationID)
		}
	}

	if fc.RNV.Configured() {
		if fc.RNV.ClientID == "" || fc.RNV.ClientSecret == "" || fc.RNV.Resource == "" {
			return Config{}, fmt.Errorf("rnv credentials are incomplete: client_id, client_secret, and resource are all required")
		}
		if fc.RNV.OAuthURL == "" && fc.RNV.TenantID == "" {
			return Config{}, fmt.Errorf("rnv credentials need either tenant_id or an explicit oauth_url")
		}
	}

	cfg := Config{
		Env:              EnvFlagToEnvironment(fc.Env),
		Port:             fc.Port,
		ApiKeys:          fc.APIKeys,
		Verbose:          fc.Verbose,
		RateLimit:        fc.RateLimit,
		PollInterval:     time.Duration(fc.PollIntervalSeconds) * time.Second,
		StationDBPath:    fc.StationDBPath,
		StationsDataPath: fc.StationsDataPath,
		RNV:              fc.RNV,
		Motis:            fc.Motis,
		Subscriptions:    fc.Subscriptions,
	}
	applyDefaults(&cfg)

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Motis.BaseURL == "" {
		cfg.Motis.BaseURL = defaultMotisBaseURL
	}
	if cfg.RNV.Configured() {
		if cfg.RNV.APIURL == "" {
			cfg.RNV.APIURL = defaultRNVAPIURL
		}
		if cfg.RNV.OAuthURL == "" {
			cfg.RNV.OAuthURL = fmt.Sprintf(defaultRNVOAuthTemplate, cfg.RNV.TenantID)
		}
	}
}
