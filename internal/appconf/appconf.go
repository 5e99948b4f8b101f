// Package appconf holds application configuration: runtime environment,
// HTTP serving options, backend credentials, and the configured station
// subscriptions. Configuration is loaded from a YAML file and validated
// up front so that bad filter settings never reach the polling loop.
package appconf

import "time"

type Environment int

const (
	Development Environment = iota
	Test
	Production
)

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// EnvFlagToEnvironment converts an environment name to an Environment value.
// Unknown values map to Development.
func EnvFlagToEnvironment(env string) Environment {
	switch env {
	case "test":
		return Test
	case "production":
		return Production
	default:
		return Development
	}
}

// RNVConfig carries OAuth2 client-credentials settings for the RNV Data Hub.
// OAuthURL and APIURL are derived from defaults when left empty.
type RNVConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Resource     string `yaml:"resource"`
	OAuthURL     string `yaml:"oauth_url"`
	APIURL       string `yaml:"api_url"`
}

// Configured reports whether RNV credentials are present at all. The RNV
// backend is optional; a Motis-only deployment needs no credentials.
func (c RNVConfig) Configured() bool {
	return c.ClientID != "" || c.ClientSecret != "" || c.TenantID != "" || c.Resource != ""
}

// MotisConfig carries settings for the unauthenticated Motis/Transitous API.
type MotisConfig struct {
	BaseURL string `yaml:"base_url"`
}

// Subscription is one user-configured station to monitor, with optional
// platform, line, and destination filters. DestinationRegex is compiled at
// load time; an invalid pattern blocks config loading.
type Subscription struct {
	StationID        string `yaml:"station_id" validate:"required"`
	Backend          string `yaml:"backend" validate:"required,oneof=rnv motis"`
	Platform         string `yaml:"platform"`
	Line             string `yaml:"line"`
	DestinationRegex string `yaml:"destination_regex"`
	Radius           int    `yaml:"radius" validate:"gte=0"`
}

// Config is the root application configuration.
type Config struct {
	Env              Environment
	Port             int
	ApiKeys          []string
	Verbose          bool
	RateLimit        int
	PollInterval     time.Duration
	StationDBPath    string
	StationsDataPath string
	RNV              RNVConfig
	Motis            MotisConfig
	Subscriptions    []Subscription
}
