package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"github.com/jmartynas/canvas-auth/internal/auth"
	"github.com/jmartynas/canvas-auth/internal/canvas"
	"github.com/jmartynas/canvas-auth/internal/config"
	"github.com/jmartynas/canvas-auth/internal/handlers"
	"github.com/jmartynas/canvas-auth/internal/middleware"
	"github.com/jmartynas/canvas-auth/internal/session"
)

// Deps are the shared resources the HTTP layer is wired with.
type Deps struct {
	DBC           dbresolver.DB
	Primary       *sql.DB
	RedisPing     func() error
	Sessions      session.Store
	Cookies       sessions.Store
	Authenticator *canvas.Authenticator
}

type Server struct {
	httpServer *http.Server
	log        logrus.FieldLogger
	tlsCert    string
	tlsKey     string
}

func New(cfg *config.Config, log logrus.FieldLogger, deps Deps) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handlers.Health)
	mux.HandleFunc("GET /ready", handlers.Ready(deps.Primary, deps.RedisPing))

	authH := &handlers.AuthHandler{
		OAuth: auth.OAuthConfig(
			cfg.Canvas.URL,
			cfg.Canvas.ClientID,
			cfg.Canvas.ClientSecret,
			cfg.PublicURL,
			cfg.Canvas.Scopes,
		),
		Authenticator: deps.Authenticator,
		Sessions:      deps.Sessions,
		Cookies:       deps.Cookies,
		DB:            deps.DBC,
		Log:           log,
		LoginService:  cfg.Canvas.LoginService,
		SuccessURL:    cfg.SuccessURL,
		SessionTTL:    time.Duration(cfg.Session.TTLSec) * time.Second,
		JWTSecret:     cfg.Session.JWTSecret,
		TokenTTL:      time.Duration(cfg.Session.TokenTTLSec) * time.Second,
	}

	mux.HandleFunc("GET /auth/login-info", authH.LoginInfo)
	mux.HandleFunc("GET /auth/canvas/login", authH.Login)
	mux.HandleFunc("GET "+auth.CallbackPath, authH.Callback)
	mux.HandleFunc("GET /auth/logout", authH.Logout)

	requireSession := middleware.RequireSession(deps.Cookies, deps.Sessions, log)
	mux.Handle("GET /api/user", requireSession(http.HandlerFunc(authH.User)))
	mux.Handle("GET /api/user/env", requireSession(http.HandlerFunc(authH.Env)))
	mux.Handle("POST /auth/token", requireSession(http.HandlerFunc(authH.Token)))

	if cfg.Admin.TokenHash != "" {
		adminH := &handlers.AdminHandler{
			DB:        deps.DBC,
			TokenHash: cfg.Admin.TokenHash,
			Log:       log,
		}
		mux.HandleFunc("GET /admin/users", adminH.RequireToken(adminH.Users))
		mux.HandleFunc("GET /admin/users/{username}/groups", adminH.RequireToken(adminH.UserGroups))
	}

	trustedProxyNetworks, err := middleware.ParseTrustedProxyCIDRs(cfg.Server.TrustedProxyCIDRs)
	if err != nil {
		log.WithError(err).
			WithField("value", cfg.Server.TrustedProxyCIDRs).
			Warn("invalid trusted proxy CIDRs, real IP will use connection remote addr")
		trustedProxyNetworks = nil
	}

	h := middleware.NoCache(mux)
	h = middleware.Recoverer(log)(h)
	h = middleware.Logger(log)(h)
	h = middleware.RequestID(h)
	h = middleware.RealIPWith(trustedProxyNetworks)(h)

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      h,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return &Server{
		httpServer: srv,
		log:        log,
		tlsCert:    cfg.Server.TLSCertFile,
		tlsKey:     cfg.Server.TLSKeyFile,
	}
}

func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("server listening")
	var err error
	if s.tlsCert != "" && s.tlsKey != "" {
		err = s.httpServer.ListenAndServeTLS(s.tlsCert, s.tlsKey)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
