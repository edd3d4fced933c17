package errs

import (
	"database/sql"
	"errors"
)

var (
	ErrNotFound = sql.ErrNoRows

	ErrAuthenticationFailed = errors.New("canvas: authentication failed")

	ErrCanvasURLRequired      = errors.New("config: canvas_url must be set")
	ErrCanvasURLTrailingSlash = errors.New("config: canvas_url must have a trailing slash")
	ErrClientCredsRequired    = errors.New("config: canvas client id and secret must be set")
	ErrPublicURLRequired      = errors.New("config: public_url must be set")
	ErrCookieKeyRequired      = errors.New("config: session cookie key must be set")
	ErrJWTSecretRequired      = errors.New("auth: JWT secret is required")
	ErrJWTSecretLength        = errors.New("config: JWT secret must be at least 32 bytes")
	ErrInvalidLogLevel        = errors.New("config: log level must be one of debug, info, warn, error")
	ErrDSNNotConfigured       = errors.New("mysql: DSN not configured (set CANVASAUTH_MYSQL_PRIMARY_DSN)")
	ErrRedisNotConfigured     = errors.New("redis: address not configured (set CANVASAUTH_REDIS_ADDR)")

	ErrInvalidSession = errors.New("auth: invalid or missing session")
)
