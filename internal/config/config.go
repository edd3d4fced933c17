package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/jmartynas/canvas-auth/internal/errs"
)

// Config is the full service configuration, processed from
// CANVASAUTH_* environment variables.
type Config struct {
	Listen     string `envconfig:"LISTEN" default:":8080"`
	Production bool   `envconfig:"PRODUCTION"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	// PublicURL is the externally reachable base URL of this service,
	// used to build the OAuth redirect URI. No trailing slash.
	PublicURL  string `envconfig:"PUBLIC_URL"`
	SuccessURL string `envconfig:"SUCCESS_URL" default:"/"`

	Canvas  CanvasConfig
	MySQL   MySQLConfig
	Redis   RedisConfig
	Session SessionConfig
	Admin   AdminConfig
	Server  ServerConfig
}

// CanvasConfig covers the identity adapter and the OAuth client
// registered in the Canvas installation.
type CanvasConfig struct {
	// URL of the Canvas installation. Must have a trailing slash.
	URL          string   `envconfig:"CANVAS_URL"`
	ClientID     string   `envconfig:"CANVAS_CLIENT_ID"`
	ClientSecret string   `envconfig:"CANVAS_CLIENT_SECRET"`
	Scopes       []string `envconfig:"CANVAS_SCOPE"`

	// LoginService is the display name front-ends render on the
	// login button.
	LoginService string `envconfig:"LOGIN_SERVICE" default:"Canvas"`

	// UsernameKey is the profile field usernames are derived from,
	// e.g. primary_email or login_id.
	UsernameKey string `envconfig:"USERNAME_KEY" default:"primary_email"`

	// StripEmailDomain removes the given domain from email-shaped
	// usernames. Empty disables stripping.
	StripEmailDomain string `envconfig:"STRIP_EMAIL_DOMAIN"`

	// CourseKey is the course field used in derived group names:
	// id, sis_course_id, course_code, ...
	CourseKey string `envconfig:"CANVAS_COURSE_KEY" default:"id"`

	ManageGroups bool `envconfig:"MANAGE_GROUPS" default:"true"`
}

type MySQLConfig struct {
	Primary  string   `envconfig:"MYSQL_PRIMARY_DSN"`
	Replicas []string `envconfig:"MYSQL_REPLICA_DSNS"`

	MaxOpenConns       int `envconfig:"MYSQL_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns       int `envconfig:"MYSQL_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetimeSec int `envconfig:"MYSQL_CONN_MAX_LIFETIME" default:"300"`
}

// PrimaryDSN returns the primary DSN with the driver options the
// service depends on (parseTime for timestamp scanning,
// multiStatements for migrations) appended when missing.
func (c MySQLConfig) PrimaryDSN() string {
	return NormalizeDSN(c.Primary)
}

// NormalizeDSN appends parseTime=true and multiStatements=true to a
// MySQL DSN unless already present. Returns "" for an empty DSN.
func NormalizeDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	for _, param := range []string{"parseTime=true", "multiStatements=true"} {
		name := strings.SplitN(param, "=", 2)[0]
		if strings.Contains(dsn, name) {
			continue
		}
		if strings.Contains(dsn, "?") {
			dsn += "&" + param
		} else {
			dsn += "?" + param
		}
	}
	return dsn
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB"`
}

type SessionConfig struct {
	// CookieKey signs the browser cookie session (gorilla/sessions).
	CookieKey []byte `envconfig:"SESSION_COOKIE_KEY"`

	// JWTSecret signs tokens minted for downstream services.
	JWTSecret string `envconfig:"JWT_SECRET"`

	// TTLSec bounds the server-side session lifetime.
	TTLSec int `envconfig:"SESSION_TTL" default:"604800"`

	// TokenTTLSec bounds minted JWT lifetime.
	TokenTTLSec int `envconfig:"TOKEN_TTL" default:"900"`
}

// AdminConfig guards the admin API. TokenHash is a bcrypt hash of the
// static admin bearer token; empty disables the admin surface.
type AdminConfig struct {
	TokenHash string `envconfig:"ADMIN_TOKEN_HASH"`
}

type ServerConfig struct {
	ReadTimeout     int `envconfig:"SERVER_READ_TIMEOUT" default:"15"`
	WriteTimeout    int `envconfig:"SERVER_WRITE_TIMEOUT" default:"15"`
	IdleTimeout     int `envconfig:"SERVER_IDLE_TIMEOUT" default:"60"`
	ShutdownTimeout int `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30"`

	TLSCertFile       string `envconfig:"TLS_CERT_FILE"`
	TLSKeyFile        string `envconfig:"TLS_KEY_FILE"`
	TrustedProxyCIDRs string `envconfig:"TRUSTED_PROXY_CIDRS" default:"127.0.0.0/8,10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,::1/128,fc00::/7"`
}

// Load processes the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("canvasauth", &cfg); err != nil {
		return nil, fmt.Errorf("parsing environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errs.ErrInvalidLogLevel
	}
	if c.Canvas.URL == "" {
		return errs.ErrCanvasURLRequired
	}
	if !strings.HasSuffix(c.Canvas.URL, "/") {
		return errs.ErrCanvasURLTrailingSlash
	}
	if c.Canvas.ClientID == "" || c.Canvas.ClientSecret == "" {
		return errs.ErrClientCredsRequired
	}
	if c.PublicURL == "" {
		return errs.ErrPublicURLRequired
	}
	if len(c.Session.CookieKey) == 0 {
		return errs.ErrCookieKeyRequired
	}
	if len(c.Session.JWTSecret) < 32 {
		return errs.ErrJWTSecretLength
	}
	if c.MySQL.Primary == "" {
		return errs.ErrDSNNotConfigured
	}
	if c.Redis.Addr == "" {
		return errs.ErrRedisNotConfigured
	}
	return nil
}
