package server

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/taskledger/server/api"
	"github.com/GoCodeAlone/taskledger/task"
)

const tokenIssuer = "taskledger"

// errInvalidCredentials is returned for an unknown owner or a wrong key.
var errInvalidCredentials = errors.New("invalid credentials")

// generateSecret creates a random 32-byte secret.
func generateSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// jwtSecret returns the configured JWT secret, generating one if empty.
func (s *Server) jwtSecret() []byte {
	if s.cfg.Auth.JWTSecret != "" {
		return []byte(s.cfg.Auth.JWTSecret)
	}
	s.secretOnce.Do(func() {
		s.generatedSecret = generateSecret()
		s.logger.Warn("no jwt secret configured, generated one; tokens will not survive a restart")
	})
	return []byte(s.generatedSecret)
}

func (s *Server) tokenTTL() time.Duration {
	ttl, err := s.cfg.TokenTTLDuration()
	if err != nil {
		return 24 * time.Hour
	}
	return ttl
}

// signToken issues an HS256 JWT whose subject is owner.
func (s *Server) signToken(owner task.Owner, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.tokenTTL())
	claims := jwt.RegisteredClaims{
		Subject:   owner.String(),
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret())
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// verifyToken validates a JWT and returns the owner in its subject.
func (s *Server) verifyToken(raw string) (task.Owner, error) {
	if raw == "" {
		return "", errors.New("missing token")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.jwtSecret(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	return task.ParseOwner(claims.Subject)
}

// checkKey compares key against the bcrypt hash registered for owner.
func (s *Server) checkKey(owner task.Owner, key string) error {
	hash, ok := s.keys[owner]
	if !ok {
		return errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		return errInvalidCredentials
	}
	return nil
}

// handleToken validates an owner's API key and issues a JWT.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req api.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeBadRequest, "invalid request body")
		return
	}
	owner, err := task.ParseOwner(req.Owner)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, api.CodeInvalidOwner, err.Error())
		return
	}
	if err := s.checkKey(owner, req.APIKey); err != nil {
		s.logger.Info("token request rejected", slog.String("owner", owner.String()))
		api.WriteError(w, http.StatusUnauthorized, api.CodeUnauthorized, err.Error())
		return
	}

	token, exp, err := s.signToken(owner, time.Now())
	if err != nil {
		s.logger.Error("sign jwt", slog.Any("err", err))
		api.WriteError(w, http.StatusInternalServerError, api.CodeInternal, "could not issue token")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(api.TokenResponse{Token: token, Owner: owner.String(), ExpiresAt: exp.UTC()})
}

// handleMe returns the currently authenticated owner.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	owner, _ := api.OwnerFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"owner": owner.String()})
}

// authMiddleware enforces JWT authentication on wrapped handlers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			api.WriteError(w, http.StatusUnauthorized, api.CodeUnauthorized, "missing or invalid Authorization header")
			return
		}
		owner, err := s.verifyToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			api.WriteError(w, http.StatusUnauthorized, api.CodeUnauthorized, "invalid token: "+err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(api.ContextWithOwner(r.Context(), owner)))
	})
}
