package main

import (
	"context"
	"embed"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis"
	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"github.com/jmartynas/canvas-auth/internal/canvas"
	"github.com/jmartynas/canvas-auth/internal/config"
	"github.com/jmartynas/canvas-auth/internal/database"
	"github.com/jmartynas/canvas-auth/internal/migrations"
	"github.com/jmartynas/canvas-auth/internal/server"
	"github.com/jmartynas/canvas-auth/internal/session"
)

//go:embed migrations
var migrationFS embed.FS

const canvasTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Error("loading configuration")
		os.Exit(1)
	}

	log := newLogger(cfg)

	dbc, primary, err := database.Open(cfg.MySQL)
	if err != nil {
		log.WithError(err).Error("connecting to mysql")
		os.Exit(1)
	}
	defer primary.Close()
	log.Info("mysql connected")

	if err := migrations.Run(primary, migrationFS, "migrations", log); err != nil {
		log.WithError(err).Error("running migrations")
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping().Err(); err != nil {
		log.WithError(err).Error("connecting to redis")
		os.Exit(1)
	}
	log.Info("redis connected")

	authenticator, err := canvas.NewAuthenticator(canvas.Options{
		BaseURL:          cfg.Canvas.URL,
		UsernameKey:      cfg.Canvas.UsernameKey,
		StripEmailDomain: cfg.Canvas.StripEmailDomain,
		CourseKey:        cfg.Canvas.CourseKey,
		ManageGroups:     cfg.Canvas.ManageGroups,
		HTTPClient:       &http.Client{Timeout: canvasTimeout},
		Log:              log,
	})
	if err != nil {
		log.WithError(err).Error("building canvas authenticator")
		os.Exit(1)
	}

	cookies := sessions.NewCookieStore(cfg.Session.CookieKey)
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode
	cookies.Options.Secure = cfg.Server.TLSCertFile != "" && cfg.Server.TLSKeyFile != ""

	srv := server.New(cfg, log, server.Deps{
		DBC:           dbc,
		Primary:       primary,
		RedisPing:     func() error { return redisClient.Ping().Err() },
		Sessions:      session.NewRedisStore(redisClient),
		Cookies:       cookies,
		Authenticator: authenticator,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.WithError(err).Error("server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown error")
		os.Exit(1)
	}
	log.Info("server stopped")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.Production {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
