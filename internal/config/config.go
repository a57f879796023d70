package config

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"github.com/crownlabs/academy-idp/pkg/logger"
)

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// BootstrapClient is the env-configured fallback relying party used before
// any client record has been registered. Disabled when ClientID is empty.
type BootstrapClient struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

func (b BootstrapClient) Enabled() bool {
	return b.ClientID != ""
}

type AppConfig struct {
	ServiceName string
	Version     string

	Port         string
	MongoURI     string
	DatabaseName string

	// Issuer overrides the per-request scheme+host derivation when set.
	Issuer      string
	FrontendURL string

	// JWTSecret signs the browser session cookie, not protocol tokens.
	JWTSecret string

	Bootstrap    BootstrapClient
	RedisConfig  RedisConfig
	KafkaConfig  KafkaConfig
	LoggerConfig logger.LoggerConfig
}

type OpenidConfiguration struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	JwksURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

func NewConfig() *AppConfig {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dbName := os.Getenv("MONGO_DATABASE")
	if dbName == "" {
		dbName = "academy_idp"
	}
	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:8080"
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		jwtSecret = "devsecret"
	}

	cfg := &AppConfig{
		ServiceName:  envOr("SERVICE_NAME", "academy-idp"),
		Version:      envOr("VERSION", "1.0.0"),
		Port:         port,
		MongoURI:     os.Getenv("MONGO_URI"),
		DatabaseName: dbName,
		Issuer:       os.Getenv("IDP_ISSUER"),
		FrontendURL:  frontendURL,
		JWTSecret:    jwtSecret,
		Bootstrap: BootstrapClient{
			ClientID:     os.Getenv("OIDC_CLIENT_ID"),
			ClientSecret: os.Getenv("OIDC_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("OIDC_CLIENT_REDIRECT_URI"),
		},
		RedisConfig: RedisConfig{
			Addr:     envOr("REDIS_HOST", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		LoggerConfig: logger.LoggerConfig{
			Summary: logger.LogOutputConfig{Path: "./logs/summary/", Console: true, File: false},
			Detail:  logger.LogOutputConfig{Path: "./logs/detail/", Console: true, File: false},
		},
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaConfig = KafkaConfig{
			Brokers:    strings.Split(brokers, ","),
			AuditTopic: envOr("KAFKA_AUDIT_TOPIC", "idp.audit"),
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// IssuerFor resolves the issuer for a request: the configured override when
// present, the request's scheme+host otherwise.
func (c *AppConfig) IssuerFor(r *http.Request) string {
	if c.Issuer != "" {
		return strings.TrimSuffix(c.Issuer, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// Discovery builds the openid-configuration document for an issuer.
func (c *AppConfig) Discovery(issuer string) OpenidConfiguration {
	return OpenidConfiguration{
		Issuer:                           issuer,
		AuthorizationEndpoint:            issuer + "/oauth/authorize",
		TokenEndpoint:                    issuer + "/oauth/token",
		UserinfoEndpoint:                 issuer + "/oauth/userinfo",
		JwksURI:                          issuer + "/jwks.json",
		ResponseTypesSupported:           []string{"code"},
		SubjectTypesSupported:            []string{"public"},
		IDTokenSigningAlgValuesSupported: []string{"RS256"},
		ScopesSupported:                  []string{"openid", "profile", "email", "offline_access"},
		ClaimsSupported: []string{
			"sub",
			"email",
			"email_verified",
			"name",
			"given_name",
			"family_name",
			"preferred_username",
		},
		GrantTypesSupported: []string{"authorization_code"},
		TokenEndpointAuthMethodsSupported: []string{
			"client_secret_post",
			"client_secret_basic",
		},
		CodeChallengeMethodsSupported: []string{"S256", "plain"},
	}
}

func (o *OpenidConfiguration) ToJSON() ([]byte, error) {
	return json.Marshal(o)
}
