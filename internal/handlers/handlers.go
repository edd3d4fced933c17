package handlers

import (
	"database/sql"
	"net/http"

	"github.com/jmartynas/canvas-auth/respond"
)

// Health is a liveness probe: returns 200 if the process is running.
func Health(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready is a readiness probe: returns 200 if MySQL and Redis are
// reachable, 503 otherwise.
func Ready(db *sql.DB, redisPing func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil {
			respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "reason": "no database"})
			return
		}
		if err := db.PingContext(r.Context()); err != nil {
			respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "reason": "database ping failed"})
			return
		}
		if redisPing != nil {
			if err := redisPing(); err != nil {
				respond.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "reason": "redis ping failed"})
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
