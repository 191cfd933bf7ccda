package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type contextKey string

const (
	OwnerIDKey   contextKey = "owner_id"
	UserRolesKey contextKey = "user_roles"
)

// RolePhysiotherapist is granted to accounts that own patient records.
const RolePhysiotherapist = "physiotherapist"

// RoleAdmin passes every role check.
const RoleAdmin = "admin"

// ErrNoOwner is returned when the request carries no authenticated owner.
var ErrNoOwner = errors.New("auth: no authenticated owner")

// Claims are the JWT claims the service understands. Subject is the owner id.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string
	// SigningKey enables HS256 verification. When empty, JWKSURL is used.
	SigningKey []byte
	Skipper    echomw.Skipper
}

// JWKSKey represents a single JSON Web Key from a JWKS endpoint.
type JWKSKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSResponse represents the response from a JWKS endpoint.
type JWKSResponse struct {
	Keys []JWKSKey `json:"keys"`
}

// JWKSCache caches RSA keys fetched from a JWKS endpoint with a TTL.
type JWKSCache struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	jwksURL   string
	ttl       time.Duration
	fetchedAt time.Time
	client    *http.Client
}

func NewJWKSCache(jwksURL string, ttl time.Duration) *JWKSCache {
	return &JWKSCache{
		keys:    make(map[string]*rsa.PublicKey),
		jwksURL: jwksURL,
		ttl:     ttl,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKey returns the key for kid, refetching on a miss or once the TTL has
// passed.
func (c *JWKSCache) GetKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	expired := time.Since(c.fetchedAt) > c.ttl
	c.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	if err := c.fetch(ctx); err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok = c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (c *JWKSCache) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", c.jwksURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	var jwks JWKSResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("decoding JWKS response: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pubKey, err := parseRSAPublicKey(k)
		if err != nil {
			continue
		}
		keys[k.Kid] = pubKey
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return nil
}

func parseRSAPublicKey(k JWKSKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decoding modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decoding exponent: %w", err)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}

const defaultJWKSCacheTTL = 5 * time.Minute

// parser verifies bearer tokens against one JWTConfig.
type parser struct {
	cfg   JWTConfig
	cache *JWKSCache
	opts  []jwt.ParserOption
}

func newParser(cfg JWTConfig) *parser {
	p := &parser{cfg: cfg}
	if len(cfg.SigningKey) > 0 {
		p.opts = append(p.opts, jwt.WithValidMethods([]string{"HS256"}))
	} else {
		p.opts = append(p.opts, jwt.WithValidMethods([]string{"RS256"}))
		p.cache = NewJWKSCache(cfg.JWKSURL, defaultJWKSCacheTTL)
	}
	if cfg.Issuer != "" {
		p.opts = append(p.opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		p.opts = append(p.opts, jwt.WithAudience(cfg.Audience))
	}
	return p
}

func (p *parser) parse(ctx context.Context, tokenStr string) (*Claims, uuid.UUID, error) {
	claims := &Claims{}
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if p.cache == nil {
			return p.cfg.SigningKey, nil
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return p.cache.GetKey(ctx, kid)
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, keyFunc, p.opts...)
	if err != nil {
		return nil, uuid.Nil, err
	}
	if !token.Valid {
		return nil, uuid.Nil, errors.New("token is not valid")
	}

	owner, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("subject is not a uuid: %w", err)
	}
	return claims, owner, nil
}

func (p *parser) authenticate(c echo.Context) error {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}

	claims, owner, err := p.parse(c.Request().Context(), strings.TrimSpace(parts[1]))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
	}

	setIdentity(c, owner, claims.Roles)
	return nil
}

func setIdentity(c echo.Context, owner uuid.UUID, roles []string) {
	c.Set(string(OwnerIDKey), owner.String())
	ctx := WithIdentity(c.Request().Context(), owner, roles)
	c.SetRequest(c.Request().WithContext(ctx))
}

// JWTMiddleware requires a valid bearer token whose subject is a UUID.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	p := newParser(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			if err := p.authenticate(c); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// DevAuthMiddleware lets requests without an Authorization header act as
// devOwner with the physiotherapist role. Requests that do send a token are
// verified as in JWTMiddleware.
func DevAuthMiddleware(cfg JWTConfig, devOwner uuid.UUID) echo.MiddlewareFunc {
	p := newParser(cfg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				setIdentity(c, devOwner, []string{RolePhysiotherapist})
				return next(c)
			}
			if err := p.authenticate(c); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// WithIdentity stores the owner and roles on ctx.
func WithIdentity(ctx context.Context, owner uuid.UUID, roles []string) context.Context {
	ctx = context.WithValue(ctx, OwnerIDKey, owner)
	return context.WithValue(ctx, UserRolesKey, roles)
}

// OwnerFromContext returns the authenticated owner, or ErrNoOwner.
func OwnerFromContext(ctx context.Context) (uuid.UUID, error) {
	owner, ok := ctx.Value(OwnerIDKey).(uuid.UUID)
	if !ok || owner == uuid.Nil {
		return uuid.Nil, ErrNoOwner
	}
	return owner, nil
}

func RolesFromContext(ctx context.Context) []string {
	roles, _ := ctx.Value(UserRolesKey).([]string)
	return roles
}
