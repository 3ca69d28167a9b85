package server

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/bernerspace/relay/internal/integration"
)

// knownIntegrations is the closed set of integrations this build understands.
var knownIntegrations = []string{"slack", "google"}

// IntegrationConfig holds the per-integration OAuth client settings from the
// environment.
type IntegrationConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
}

// Config holds server configuration loaded from environment variables. It is
// constructed once at startup and passed explicitly into every component.
type Config struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	DBPath      string
	ListenAddr  string
	BaseURL     string
	CORSOrigins []string
	StateTTL    time.Duration

	Integrations map[string]IntegrationConfig
}

// LoadConfig loads server configuration from environment variables.
func LoadConfig() (*Config, error) {
	secret := os.Getenv("RELAY_JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("RELAY_JWT_SECRET is required")
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("RELAY_JWT_SECRET must be at least 16 characters")
	}

	issuer := os.Getenv("RELAY_JWT_ISSUER")
	if issuer == "" {
		issuer = "bernerspace-ecosystem"
	}
	audience := os.Getenv("RELAY_JWT_AUDIENCE")
	if audience == "" {
		audience = "relay-gateway"
	}

	dbPath := os.Getenv("RELAY_DB_PATH")
	if dbPath == "" {
		dbPath = "relay.db"
	}

	listenAddr := os.Getenv("RELAY_LISTEN_ADDR")
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	baseURL := strings.TrimRight(os.Getenv("RELAY_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost" + listenAddr
	}

	stateTTL := 10 * time.Minute
	if v := os.Getenv("RELAY_STATE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("RELAY_STATE_TTL must be a positive duration (e.g. 10m)")
		}
		stateTTL = d
	}

	var corsOrigins []string
	if v := os.Getenv("RELAY_CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				corsOrigins = append(corsOrigins, o)
			}
		}
	}

	integrations := make(map[string]IntegrationConfig)
	for _, name := range knownIntegrations {
		prefix := strings.ToUpper(name)
		id := os.Getenv(prefix + "_CLIENT_ID")
		clientSecret := os.Getenv(prefix + "_CLIENT_SECRET")
		redirect := os.Getenv(prefix + "_REDIRECT_URI")
		scopesRaw := os.Getenv(prefix + "_SCOPES")

		// An integration is named by setting any of its variables; the
		// registry rejects incomplete ones at startup.
		if id == "" && clientSecret == "" && redirect == "" && scopesRaw == "" {
			continue
		}

		if redirect == "" {
			redirect = fmt.Sprintf("%s/%s/oauth/callback", baseURL, name)
		}

		var scopes []string
		if scopesRaw != "" {
			for _, sc := range strings.Split(scopesRaw, ",") {
				sc = strings.TrimSpace(sc)
				if sc != "" {
					scopes = append(scopes, sc)
				}
			}
		}

		integrations[name] = IntegrationConfig{
			ClientID:     id,
			ClientSecret: clientSecret,
			RedirectURI:  redirect,
			Scopes:       scopes,
		}
	}

	if len(integrations) == 0 {
		return nil, fmt.Errorf("no integrations configured: set SLACK_CLIENT_ID/SLACK_CLIENT_SECRET or GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET")
	}

	return &Config{
		JWTSecret:    secret,
		JWTIssuer:    issuer,
		JWTAudience:  audience,
		DBPath:       dbPath,
		ListenAddr:   listenAddr,
		BaseURL:      baseURL,
		CORSOrigins:  corsOrigins,
		StateTTL:     stateTTL,
		Integrations: integrations,
	}, nil
}

// Descriptors converts the configured integrations into registry descriptors,
// in deterministic order.
func (c *Config) Descriptors() []*integration.Descriptor {
	names := make([]string, 0, len(c.Integrations))
	for n := range c.Integrations {
		names = append(names, n)
	}
	sort.Strings(names)

	descs := make([]*integration.Descriptor, 0, len(names))
	for _, n := range names {
		ic := c.Integrations[n]
		descs = append(descs, &integration.Descriptor{
			Name:         n,
			ClientID:     ic.ClientID,
			ClientSecret: ic.ClientSecret,
			RedirectURI:  ic.RedirectURI,
			Scopes:       ic.Scopes,
		})
	}
	return descs
}

// Secrets lists the sensitive configuration values the log masker redacts.
func (c *Config) Secrets() []string {
	secrets := []string{c.JWTSecret}
	for _, ic := range c.Integrations {
		secrets = append(secrets, ic.ClientSecret)
	}
	return secrets
}
