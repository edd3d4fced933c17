package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bxcodec/dbresolver/v2"
	_ "github.com/go-sql-driver/mysql"

	"github.com/jmartynas/canvas-auth/internal/config"
	"github.com/jmartynas/canvas-auth/internal/errs"
)

// Open connects the primary and any replicas and wraps them in a
// resolver that routes reads to replicas. The primary handle is
// returned separately for migrations and readiness pings.
func Open(cfg config.MySQLConfig) (dbresolver.DB, *sql.DB, error) {
	dsn := cfg.PrimaryDSN()
	if dsn == "" {
		return nil, nil, errs.ErrDSNNotConfigured
	}

	primary, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open mysql primary: %w", err)
	}
	tune(primary, cfg)

	if err := primary.Ping(); err != nil {
		_ = primary.Close()
		return nil, nil, fmt.Errorf("ping mysql primary: %w", err)
	}

	conns := []dbresolver.OptionFunc{dbresolver.WithPrimaryDBs(primary)}
	for _, replicaDSN := range cfg.Replicas {
		replica, err := sql.Open("mysql", config.NormalizeDSN(replicaDSN))
		if err != nil {
			_ = primary.Close()
			return nil, nil, fmt.Errorf("open mysql replica: %w", err)
		}
		tune(replica, cfg)
		conns = append(conns, dbresolver.WithReplicaDBs(replica))
	}

	return dbresolver.New(conns...), primary, nil
}

func tune(db *sql.DB, cfg config.MySQLConfig) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	db.SetMaxOpenConns(maxOpen)

	maxIdle := cfg.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	db.SetMaxIdleConns(maxIdle)

	connLife := time.Duration(cfg.ConnMaxLifetimeSec) * time.Second
	if connLife <= 0 {
		connLife = 5 * time.Minute
	}
	db.SetConnMaxLifetime(connLife)
}
