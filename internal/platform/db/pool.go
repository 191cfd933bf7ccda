package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

// PoolConfig configures NewPool.
type PoolConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
	// Schema becomes the connection search_path when set.
	Schema string
	// QueryLogLevel is the pgx level at which statements are logged. Zero
	// disables statement tracing.
	QueryLogLevel tracelog.LogLevel
}

func NewPool(ctx context.Context, pc PoolConfig, logger zerolog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(pc.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = pc.MinConns
	}
	if pc.Schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = pc.Schema
	}
	if pc.QueryLogLevel != 0 {
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   ZerologTracer(logger),
			LogLevel: pc.QueryLogLevel,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// ZerologTracer adapts a zerolog logger to pgx's tracelog.
func ZerologTracer(logger zerolog.Logger) tracelog.Logger {
	return tracelog.LoggerFunc(func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
		evt := logger.WithLevel(zerologLevel(level))
		if data != nil {
			if sql, ok := data["sql"]; ok {
				evt = evt.Interface("sql", sql)
			}
			if d, ok := data["time"]; ok {
				evt = evt.Interface("duration", d)
			}
			if e, ok := data["err"].(error); ok {
				evt = evt.Err(e)
			}
		}
		evt.Str("component", "pgx").Msg(msg)
	})
}

func zerologLevel(level tracelog.LogLevel) zerolog.Level {
	switch level {
	case tracelog.LogLevelTrace:
		return zerolog.TraceLevel
	case tracelog.LogLevelDebug:
		return zerolog.DebugLevel
	case tracelog.LogLevelInfo:
		return zerolog.InfoLevel
	case tracelog.LogLevelWarn:
		return zerolog.WarnLevel
	case tracelog.LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.NoLevel
	}
}
