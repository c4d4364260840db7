package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/park285/Cheese-Chess-Arena/internal/identity"
	"github.com/park285/Cheese-Chess-Arena/internal/obslog"
	"github.com/park285/Cheese-Chess-Arena/pkg/chessdto"
	"go.uber.org/zap"
)

type Identity struct {
	UserID   string
	Username string
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Middleware rejects requests without a valid bearer token and registers
// every verified caller in the directory so they can be invited by name.
// Browsers cannot set headers on websocket upgrades, so the token may also
// arrive as ?token=.
func Middleware(tokens *TokenService, dir identity.Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearer(r)
			if raw == "" {
				unauthorized(w, "missing token")
				return
			}
			claims, err := tokens.Verify(raw)
			if err != nil {
				obslog.L().Debug("auth_reject", zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w, "invalid token")
				return
			}
			if dir != nil {
				if err := dir.Register(r.Context(), claims.UserID, claims.Username); err != nil {
					obslog.L().Warn("auth_register_error", zap.String("user", claims.UserID), zap.Error(err))
				}
			}
			ctx := WithIdentity(r.Context(), Identity{UserID: claims.UserID, Username: claims.Username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(chessdto.ErrorResponse{Error: chessdto.DomainError{Code: "unauthorized", Message: msg}})
}
