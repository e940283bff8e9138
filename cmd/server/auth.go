package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nickyhof/MiniDB/internal/config"
	"github.com/nickyhof/MiniDB/internal/logging"
	"github.com/nickyhof/MiniDB/ps"
)

// AuthConfig configures server authentication.
type AuthConfig struct {
	// Enabled enables authentication. If false, every request is accepted.
	Enabled bool

	// JWTSecret is the shared secret for HS256 JWT validation.
	JWTSecret string

	// Issuer is the expected "iss" claim in JWTs.
	Issuer string

	// Audience is the expected "aud" claim in JWTs (optional).
	Audience string

	// NameClaim is the JWT claim for user's name (default: "name").
	NameClaim string

	// EmailClaim is the JWT claim for user's email (default: "email").
	EmailClaim string
}

// AuthConfigFrom builds the bearer auth settings of the server config.
func AuthConfigFrom(cfg config.Server) AuthConfig {
	return AuthConfig{
		Enabled:   cfg.AuthEnabled(),
		JWTSecret: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
	}
}

// authResult represents the result of an authentication attempt.
type authResult struct {
	identity  ps.Identity
	expiresAt time.Time
	err       error
}

type identityKey struct{}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (ps.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(ps.Identity)
	return identity, ok
}

// validateJWT validates a JWT token and extracts identity claims.
func (s *Server) validateJWT(tokenString string) authResult {
	if !s.auth.Enabled || s.auth.JWTSecret == "" {
		return authResult{err: errors.New("authentication not configured")}
	}

	nameClaim := s.auth.NameClaim
	if nameClaim == "" {
		nameClaim = "name"
	}
	emailClaim := s.auth.EmailClaim
	if emailClaim == "" {
		emailClaim = "email"
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if s.auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.auth.Issuer))
	}
	if s.auth.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.auth.Audience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.auth.JWTSecret), nil
	}, opts...)
	if err != nil {
		return authResult{err: fmt.Errorf("invalid token: %w", err)}
	}

	if !token.Valid {
		return authResult{err: errors.New("invalid token")}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return authResult{err: errors.New("invalid token claims")}
	}

	name, _ := claims[nameClaim].(string)
	email, _ := claims[emailClaim].(string)
	if name == "" && email == "" {
		return authResult{err: fmt.Errorf("token missing identity claims (%s or %s)", nameClaim, emailClaim)}
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	return authResult{
		identity:  ps.Identity{Name: name, Email: email},
		expiresAt: expiresAt,
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// WebSocket clients that cannot set headers may pass ?access_token=<token>.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		if token := r.URL.Query().Get("access_token"); token != "" && isWebSocketUpgrade(r) {
			return token, nil
		}
		return "", errors.New("missing bearer token")
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errors.New("invalid Authorization header: expected Bearer <token>")
	}
	return strings.TrimSpace(token), nil
}

func isWebSocketUpgrade(r *http.Request) bool {
	return slices.ContainsFunc(strings.Split(r.Header.Get("Connection"), ","), func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "upgrade")
	}) && strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// requireAuth rejects requests without a valid bearer token when
// authentication is enabled.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Enabled {
			next(w, r)
			return
		}

		token, err := bearerToken(r)
		if err == nil {
			result := s.validateJWT(token)
			err = result.err
			if err == nil {
				ctx := context.WithValue(r.Context(), identityKey{}, result.identity)
				next(w, r.WithContext(ctx))
				return
			}
		}

		logging.SecurityEvent(r.Context(), "auth_failed", "jwt", "path", r.URL.Path, "error", err)
		w.Header().Set("WWW-Authenticate", `Bearer realm="minidb"`)
		writeError(w, http.StatusUnauthorized, err.Error())
	}
}
