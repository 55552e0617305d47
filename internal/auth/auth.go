package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Principal is the authenticated identity attached to a request. The
// order flow treats it as an opaque, trusted input.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type principalKey struct{}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// ContextWithPrincipal is exposed for handler tests.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

type Middleware struct {
	secret []byte
	logger *slog.Logger
}

func NewMiddleware(secret []byte, logger *slog.Logger) *Middleware {
	return &Middleware{secret: secret, logger: logger}
}

// Protect requires a valid bearer token and attaches the Principal to
// the request context.
func (m *Middleware) Protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			m.writeError(w, http.StatusUnauthorized, "access denied, no token provided")
			return
		}

		principal, err := m.parseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			m.logger.Info("rejected token", "error", err)
			m.writeError(w, http.StatusUnauthorized, "access denied, invalid token")
			return
		}

		next(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
	}
}

// AdminOnly requires a Principal already set by Protect and an admin
// role.
func (m *Middleware) AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			m.writeError(w, http.StatusUnauthorized, "access denied, user not authenticated")
			return
		}
		if principal.Role != RoleAdmin {
			m.writeError(w, http.StatusForbidden, "access denied, admin only")
			return
		}
		next(w, r)
	}
}

func (m *Middleware) parseToken(tokenString string) (*Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected token signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	principal := &Principal{
		ID:    stringClaim(claims, "id"),
		Name:  stringClaim(claims, "name"),
		Email: stringClaim(claims, "email"),
		Role:  stringClaim(claims, "role"),
	}
	if principal.ID == "" {
		return nil, errors.New("token has no subject id")
	}
	return principal, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

// SignToken issues a token for a principal. Used by tests and by local
// seeding; production tokens come from the auth service.
func SignToken(secret []byte, p Principal, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"id":    p.ID,
		"name":  p.Name,
		"email": p.Email,
		"role":  p.Role,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message}); err != nil {
		m.logger.Error("failed to encode error response", "error", err)
	}
}
