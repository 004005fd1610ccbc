package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/meatcoin/meatcoin/internal/auth"
	"github.com/meatcoin/meatcoin/internal/identity"
)

// Signature auth headers.
const (
	HeaderIdentity  = "X-Identity"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// AuthConfig holds configuration for the signature auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	// Now overrides the clock for tests. Nil means time.Now.
	Now func() time.Time
}

// Auth returns a middleware that authenticates requests by ed25519
// signature: the caller identity is its public key, and the signature
// covers method, path, body hash, and timestamp. The verified caller is
// injected into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := identity.Parse(r.Header.Get(HeaderIdentity))
			if err != nil || caller.IsZero() {
				logAuthFailure(cfg.Logger, r, "invalid_identity")
				writeAuthError(w)
				return
			}

			timestamp, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
			if err != nil {
				logAuthFailure(cfg.Logger, r, "invalid_timestamp")
				writeAuthError(w)
				return
			}
			if err := auth.CheckTimestamp(timestamp, now()); err != nil {
				logAuthFailure(cfg.Logger, r, "stale_timestamp")
				writeAuthError(w)
				return
			}

			// The signature covers the body; read it and hand the handler
			// a fresh reader.
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logAuthFailure(cfg.Logger, r, "unreadable_body")
				writeAuthError(w)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			signature := r.Header.Get(HeaderSignature)
			if err := auth.Verify(caller, signature, r.Method, r.URL.Path, body, timestamp); err != nil {
				logAuthFailure(cfg.Logger, r, "bad_signature")
				writeAuthError(w)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("caller", caller.Short()),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), &auth.AuthContext{Caller: caller})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string) {
	logger.Warn("authentication failed",
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	)
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHENTICATED","message":"Invalid or missing request signature"}}`))
}
