package db

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	Driver          string `json:"driver"`
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// Checker is a database that can be pinged and report pool statistics.
type Checker interface {
	Ping(ctx context.Context) error
	Stats() *PoolStats
}

// PgxChecker wraps a pgx pool.
type PgxChecker struct{ Pool *pgxpool.Pool }

func (p PgxChecker) Ping(ctx context.Context) error { return p.Pool.Ping(ctx) }

func (p PgxChecker) Stats() *PoolStats {
	stat := p.Pool.Stat()
	return &PoolStats{
		Driver:          "postgres",
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// SQLChecker wraps a database/sql handle, as returned by gorm's DB().
type SQLChecker struct{ DB *sql.DB }

func (s SQLChecker) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s SQLChecker) Stats() *PoolStats {
	return statsFromSQL(s.DB.Stats())
}

func statsFromSQL(st sql.DBStats) *PoolStats {
	return &PoolStats{
		Driver:          "mysql",
		TotalConns:      int32(st.OpenConnections),
		IdleConns:       int32(st.Idle),
		AcquiredConns:   int32(st.InUse),
		MaxConns:        int32(st.MaxOpenConnections),
		AcquireCount:    st.WaitCount,
		AcquireDuration: st.WaitDuration.String(),
		Healthy:         st.OpenConnections > 0,
	}
}

// HealthHandler returns a handler for the database health check endpoint.
func HealthHandler(check Checker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		err := check.Ping(ctx)
		stats := check.Stats()

		if err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"pool":   stats,
		})
	}
}
