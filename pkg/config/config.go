// Package config loads the API configuration from a JSON file with
// environment variable overrides.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gary-archer/oauth.websample.azure/pkg/networking"
)

// Default settings applied when the configuration file leaves them out
const (
	DefaultPort                  = 8080
	DefaultClockSkewSeconds      = 0
	DefaultClaimsCacheMinutes    = 15
	DefaultClaimsCacheMaxEntries = 10000
	DefaultFetchTimeoutSeconds   = 10
)

// Extra claims provider strategies
const (
	ProviderSample = "sample"
	ProviderGraph  = "graph"
)

// APIConfig holds the web host settings
type APIConfig struct {
	// Port is the listening port for the API
	Port int `mapstructure:"port"`

	// TrustedOrigins are the web origins allowed to call the API
	TrustedOrigins []string `mapstructure:"trustedOrigins"`
}

// GraphConfig holds the settings for the secondary token grant used to
// reach the extra claims source
type GraphConfig struct {
	// ClientID is the confidential client used for the secondary grant
	ClientID string `mapstructure:"clientId"`

	// ClientSecret is the confidential client secret
	ClientSecret string `mapstructure:"clientSecret"`

	// Scope is the scope requested for the secondary grant
	Scope string `mapstructure:"scope"`

	// TokenEndpoint is the authorization server's token endpoint
	TokenEndpoint string `mapstructure:"tokenEndpoint"`

	// UserEndpoint is the user data endpoint queried by subject
	UserEndpoint string `mapstructure:"userEndpoint"`
}

// OAuthConfig holds the token validation and claims caching settings
type OAuthConfig struct {
	// Issuer is the expected iss claim value
	Issuer string `mapstructure:"issuer"`

	// Audience is the expected aud claim value
	Audience string `mapstructure:"audience"`

	// JWKSEndpoint is the URL for downloading token signing keys. When
	// empty it is discovered from the issuer's OIDC metadata.
	JWKSEndpoint string `mapstructure:"jwksEndpoint"`

	// Algorithms is the allow list of accepted signing algorithms
	Algorithms []string `mapstructure:"algorithms"`

	// RequiredScope must be present in every accepted access token
	RequiredScope string `mapstructure:"requiredScope"`

	// ClockSkewSeconds is the leeway allowed on time based claims
	ClockSkewSeconds int `mapstructure:"clockSkewSeconds"`

	// ClaimsCacheTimeToLiveMinutes bounds how long extra claims are cached
	ClaimsCacheTimeToLiveMinutes int `mapstructure:"claimsCacheTimeToLiveMinutes"`

	// ClaimsCacheMaxEntries bounds the claims cache size
	ClaimsCacheMaxEntries int `mapstructure:"claimsCacheMaxEntries"`

	// FetchTimeoutSeconds bounds key set and claims source fetches
	FetchTimeoutSeconds int `mapstructure:"fetchTimeoutSeconds"`

	// AllowPrivateEndpoints permits the identity provider to live on a
	// private or plain HTTP address, for development setups
	AllowPrivateEndpoints bool `mapstructure:"allowPrivateEndpoints"`

	// ClaimsProvider selects the extra claims strategy: sample or graph
	ClaimsProvider string `mapstructure:"claimsProvider"`

	// Graph holds the settings for the graph claims provider
	Graph GraphConfig `mapstructure:"graph"`
}

// Config is the root configuration object
type Config struct {
	API   APIConfig   `mapstructure:"api"`
	OAuth OAuthConfig `mapstructure:"oauth"`
}

// FetchTimeout returns the bounded timeout for outbound identity provider calls
func (o *OAuthConfig) FetchTimeout() time.Duration {
	return time.Duration(o.FetchTimeoutSeconds) * time.Second
}

// ClockSkew returns the leeway allowed on time based claims
func (o *OAuthConfig) ClockSkew() time.Duration {
	return time.Duration(o.ClockSkewSeconds) * time.Second
}

// ClaimsCacheTimeToLive returns the maximum extra claims cache duration
func (o *OAuthConfig) ClaimsCacheTimeToLive() time.Duration {
	return time.Duration(o.ClaimsCacheTimeToLiveMinutes) * time.Minute
}

// Load reads the configuration file and environment overrides
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("json")
	v.SetEnvPrefix("SAMPLEAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", DefaultPort)
	v.SetDefault("oauth.algorithms", []string{"RS256"})
	v.SetDefault("oauth.clockSkewSeconds", DefaultClockSkewSeconds)
	v.SetDefault("oauth.claimsCacheTimeToLiveMinutes", DefaultClaimsCacheMinutes)
	v.SetDefault("oauth.claimsCacheMaxEntries", DefaultClaimsCacheMaxEntries)
	v.SetDefault("oauth.fetchTimeoutSeconds", DefaultFetchTimeoutSeconds)
	v.SetDefault("oauth.claimsProvider", ProviderSample)
}

// Validate checks the required settings at startup
func (c *Config) Validate() error {
	for _, origin := range c.API.TrustedOrigins {
		if !networking.IsURL(origin) {
			return fmt.Errorf("api.trustedOrigins entry %q must be an absolute URL", origin)
		}
		parsed, _ := url.Parse(origin)
		if parsed.Scheme == "http" && !networking.IsLocalhost(parsed.Host) {
			return fmt.Errorf("api.trustedOrigins entry %q must use https unless it is a localhost origin", origin)
		}
	}

	if c.OAuth.Issuer == "" {
		return fmt.Errorf("oauth.issuer is required")
	}
	if !networking.IsURL(c.OAuth.Issuer) {
		return fmt.Errorf("oauth.issuer must be an absolute URL")
	}
	if c.OAuth.JWKSEndpoint != "" && !networking.IsURL(c.OAuth.JWKSEndpoint) {
		return fmt.Errorf("oauth.jwksEndpoint must be an absolute URL")
	}
	if c.OAuth.Audience == "" {
		return fmt.Errorf("oauth.audience is required")
	}
	if c.OAuth.RequiredScope == "" {
		return fmt.Errorf("oauth.requiredScope is required")
	}
	if len(c.OAuth.Algorithms) == 0 {
		return fmt.Errorf("oauth.algorithms must not be empty")
	}
	if c.OAuth.ClaimsCacheTimeToLiveMinutes <= 0 {
		return fmt.Errorf("oauth.claimsCacheTimeToLiveMinutes must be positive")
	}

	switch c.OAuth.ClaimsProvider {
	case ProviderSample:
	case ProviderGraph:
		if c.OAuth.Graph.ClientID == "" || c.OAuth.Graph.ClientSecret == "" {
			return fmt.Errorf("oauth.graph client credentials are required for the graph claims provider")
		}
		if !networking.IsURL(c.OAuth.Graph.TokenEndpoint) {
			return fmt.Errorf("oauth.graph.tokenEndpoint must be an absolute URL")
		}
		if !networking.IsURL(c.OAuth.Graph.UserEndpoint) {
			return fmt.Errorf("oauth.graph.userEndpoint must be an absolute URL")
		}
	default:
		return fmt.Errorf("oauth.claimsProvider must be %q or %q", ProviderSample, ProviderGraph)
	}

	return nil
}
