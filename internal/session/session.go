package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/uuid"

	"github.com/jmartynas/canvas-auth/internal/errs"
)

const DefaultMaxAge = 7 * 24 * time.Hour

// Session is the server-side record behind a browser cookie. It holds
// the Canvas access token and the raw profile so the authenticated API
// can serve them without going back to Canvas.
type Session struct {
	ID          string         `json:"id"`
	Username    string         `json:"username"`
	AccessToken string         `json:"access_token"`
	AuthState   map[string]any `json:"auth_state,omitempty"`
	Groups      []string       `json:"groups,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// New builds a session record for a fresh login.
func New(username, accessToken string, authState map[string]any, groups []string, maxAge time.Duration) *Session {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	now := time.Now()
	return &Session{
		ID:          uuid.New().String(),
		Username:    username,
		AccessToken: accessToken,
		AuthState:   authState,
		Groups:      groups,
		CreatedAt:   now,
		ExpiresAt:   now.Add(maxAge),
	}
}

// Store persists session records. Get returns errs.ErrInvalidSession
// for unknown or expired ids.
type Store interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps sessions in Redis with a TTL matching expiry, so
// revocation is a delete and expiry needs no sweeper.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "session:"}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	if s.ID == "" || s.Username == "" {
		return fmt.Errorf("session: missing id or username")
	}
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session: expires_at must be in the future")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := r.client.WithContext(ctx).Set(r.key(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.WithContext(ctx).Get(r.key(id)).Bytes()
	if err == redis.Nil {
		return nil, errs.ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	if time.Now().After(s.ExpiresAt) {
		return nil, errs.ErrInvalidSession
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.WithContext(ctx).Del(r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
