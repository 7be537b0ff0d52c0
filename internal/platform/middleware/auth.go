package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKeyActor struct{}

// GetActor retrieves the authenticated subject from the context.
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(contextKeyActor{}).(string); ok {
		return actor
	}
	return ""
}

// AdminValidator verifies admin bearer tokens for catalog writes.
type AdminValidator struct {
	signingKey []byte
}

func NewAdminValidator(signingKey string) *AdminValidator {
	return &AdminValidator{signingKey: []byte(signingKey)}
}

type adminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Validate parses the token and returns the subject when the admin role is
// present.
func (v *AdminValidator) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &adminClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse admin token: %w", err)
	}
	claims, ok := token.Claims.(*adminClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid admin token")
	}
	if claims.Role != "admin" {
		return "", fmt.Errorf("admin role required")
	}
	return claims.Subject, nil
}

// RequireAdmin guards administrative routes with a bearer JWT carrying the
// admin role.
func RequireAdmin(validator *AdminValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				unauthorized(w)
				return
			}
			subject, err := validator.Validate(token)
			if err != nil {
				logger.WarnContext(ctx, "admin access denied",
					"request_id", GetRequestID(ctx),
					"error", err.Error(),
				)
				unauthorized(w)
				return
			}
			ctx = context.WithValue(ctx, contextKeyActor{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
