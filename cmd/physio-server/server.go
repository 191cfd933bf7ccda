package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/physio/physio/internal/config"
	"github.com/physio/physio/internal/domain/patient"
	"github.com/physio/physio/internal/platform/auth"
	"github.com/physio/physio/internal/platform/db"
	"github.com/physio/physio/internal/platform/i18n"
	"github.com/physio/physio/internal/platform/middleware"
	"github.com/physio/physio/internal/platform/response"
	"github.com/physio/physio/internal/platform/validation"
)

// newServer builds the echo instance with every route and middleware. The
// database is reached only through pinger and repo.
func newServer(cfg *config.Config, logger zerolog.Logger, pinger db.Pinger, repo patient.Repository) (*echo.Echo, error) {
	locale, err := cfg.Locale()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = response.JSONSerializer{}
	e.HTTPErrorHandler = response.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(i18n.Middleware(locale))
	e.Use(echomw.Secure())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderAccept,
			"Accept-Language", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	// The deadline sits inside Audit so a timeout is turned into 504 before
	// anything renders the error.
	timeout := middleware.RequestTimeout(cfg.RequestTimeout)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return response.Success(c, http.StatusOK, i18n.StatusHealthy, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pinger, logger), timeout)

	// Auth middleware
	jwtCfg := auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		devOwner, err := cfg.DevOwner()
		if err != nil {
			return nil, err
		}
		logger.Warn().Str("owner_id", devOwner.String()).
			Msg("development auth enabled: requests without a token act as the development owner")
		authMW = auth.DevAuthMiddleware(jwtCfg, devOwner)
	} else {
		authMW = auth.JWTMiddleware(jwtCfg)
	}

	apiV1 := e.Group("/api/v1", authMW)

	rateLimitCfg := middleware.DefaultRateLimitConfig()
	rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	rateLimitCfg.BurstSize = cfg.RateLimitBurst

	svc := patient.NewService(repo, validation.New())
	patient.NewHandler(svc).RegisterRoutes(apiV1,
		middleware.RateLimit(rateLimitCfg),
		middleware.Audit(logger),
		timeout,
	)

	logger.Debug().Int("routes", len(e.Routes())).Msg("routes registered")
	return e, nil
}
