package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/physio/physio/internal/platform/i18n"
	"github.com/physio/physio/internal/platform/response"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health is the data payload of the database health endpoint.
type Health struct {
	Status string     `json:"status"`
	Pool   *PoolStats `json:"pool,omitempty"`
}

const healthTimeout = 5 * time.Second

// HealthHandler pings the database. Pool statistics are included when p is a
// *pgxpool.Pool.
func HealthHandler(p Pinger, logger zerolog.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		err := p.Ping(ctx)

		h := Health{Status: "healthy"}
		if pool, ok := p.(*pgxpool.Pool); ok {
			h.Pool = GetPoolStats(pool)
		}
		if err != nil {
			h.Status = "unhealthy"
			logger.Error().Err(err).Msg("database health check failed")
			return response.Fail(c, http.StatusServiceUnavailable, i18n.StatusUnhealthy, h)
		}
		return response.Success(c, http.StatusOK, i18n.StatusHealthy, h)
	}
}
