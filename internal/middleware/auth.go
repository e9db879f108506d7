package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"wildsats-api/internal/identity"
	"wildsats-api/pkg/apierror"
)

type contextKey string

// PubkeyKey is the context key for the authenticated hex public key.
const PubkeyKey contextKey = "nostr_pubkey"

// maxAuthBody bounds how much of a request body is read for payload hashing.
const maxAuthBody = 1 << 20

// Authenticator validates a NIP-98 Authorization header for a request.
type Authenticator interface {
	Authenticate(ctx context.Context, header, method, path string, body []byte) (string, error)
}

// AuthFailureRecorder counts rejected proofs by reason.
type AuthFailureRecorder interface {
	RecordAuthFailure(reason string)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Authenticator Authenticator
	// Required rejects unsigned mutating requests. When false a valid header is still
	// verified and attached, and a missing one is let through.
	Required bool
	Recorder AuthFailureRecorder
	Logger   *slog.Logger
}

// NewAuthMiddleware creates a NIP-98 middleware for state-changing routes.
// Safe methods pass through untouched.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || cfg.Authenticator == nil {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" && !cfg.Required {
				next.ServeHTTP(w, r)
				return
			}

			body, err := readBody(r)
			if err != nil {
				writeError(w, apierror.BadRequest("could not read request body"))
				return
			}

			pubkey, err := cfg.Authenticator.Authenticate(r.Context(), header, r.Method, r.URL.Path, body)
			if err != nil {
				reason := failureReason(err)
				if cfg.Recorder != nil {
					cfg.Recorder.RecordAuthFailure(reason)
				}
				if !errors.Is(err, identity.ErrInvalidAuth) {
					logger.ErrorContext(r.Context(), "authentication unavailable", "error", err)
					writeError(w, apierror.ServiceUnavailable("authentication unavailable"))
					return
				}
				logger.InfoContext(r.Context(), "authentication rejected", "reason", reason, "path", r.URL.Path)
				writeError(w, apierror.Unauthorized("invalid Nostr authorization: "+reason))
				return
			}

			ctx := context.WithValue(r.Context(), PubkeyKey, pubkey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PubkeyFromContext returns the authenticated hex public key, if any.
func PubkeyFromContext(ctx context.Context) (string, bool) {
	pubkey, ok := ctx.Value(PubkeyKey).(string)
	return pubkey, ok && pubkey != ""
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// readBody drains the body and puts an identical reader back for the handler.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthBody))
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func failureReason(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if reason, ok := oopsErr.Context()["reason"].(string); ok && reason != "" {
			return reason
		}
	}
	return "unavailable"
}
