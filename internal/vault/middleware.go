package vault

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"filevault/internal/auth"
	"filevault/pkg/metrics"
)

type contextKey int

const usernameContextKey contextKey = iota

// vaultHandler is the signature every route handler implements: a typed
// *VaultError on failure, nil on success (the handler has already written
// its own 2xx body).
type vaultHandler func(w http.ResponseWriter, r *http.Request) *VaultError

// wrap adapts a vaultHandler to http.HandlerFunc, translating a returned
// *VaultError into the wire envelope at the boundary.
func wrap(h vaultHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if verr := h(w, r); verr != nil {
			writeError(w, verr)
		}
	}
}

func writeError(w http.ResponseWriter, verr *VaultError) {
	env := newEnvelope(verr)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(verr.Status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Printf("failed to encode error envelope: %v", err)
	}
}

// usernameFromContext retrieves the username AuthMiddleware attached to the
// request context. Callers only reach this after the middleware has run, so
// the second return value is purely defensive.
func usernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameContextKey).(string)
	return username, ok
}

// AuthMiddleware reads the Authorization header, consults the token cache,
// and on a hit attaches the resolved username to the request context. A
// miss (absent header, malformed header, or unknown/expired token) is
// treated identically: 401 Unauthorized.
func AuthMiddleware(cache *auth.TokenCache, next vaultHandler) vaultHandler {
	return func(w http.ResponseWriter, r *http.Request) *VaultError {
		token, ok := extractBearerToken(r)
		if !ok {
			return Unauthorized("missing or malformed Authorization header")
		}

		username, ok := cache.GetUsername(token)
		if !ok {
			return Unauthorized("invalid or expired token")
		}

		ctx := context.WithValue(r.Context(), usernameContextKey, username)
		return next(w, r.WithContext(ctx))
	}
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

// CORSConfig controls the allowed-origin policy applied to every response.
type CORSConfig struct {
	// AllowedOrigin is either "*" or a single specific origin. An empty
	// value behaves like "*".
	AllowedOrigin string
}

const corsAllowedMethods = "HEAD, OPTIONS, GET, POST, PUT, DELETE"
const corsAllowedHeaders = "Authorization, Accept, Content-Type"
const corsMaxAgeSeconds = "86400"

// withCORS applies the CORS policy and short-circuits preflight OPTIONS
// requests. When a specific origin is configured, a request from any other
// Origin simply does not receive the allow-origin header, which is enough
// for browsers to block it — it is not an error response.
func withCORS(cfg CORSConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := cfg.AllowedOrigin == "" || cfg.AllowedOrigin == "*"

		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin == cfg.AllowedOrigin {
			w.Header().Set("Access-Control-Allow-Origin", cfg.AllowedOrigin)
			w.Header().Set("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
		w.Header().Set("Access-Control-Max-Age", corsMaxAgeSeconds)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRecover catches a panic anywhere downstream and rewrites it into an
// UnexpectedError envelope instead of letting it crash the serving
// goroutine. net/http recovers panics itself only to the extent of closing
// the connection; it does not produce a structured response, so this must
// be explicit.
func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("recovered from panic in handler: %v", rec)
				writeError(w, UnexpectedError())
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
// actually written, since http.ResponseWriter itself exposes no getter.
type responseWriter struct {
	http.ResponseWriter
	code int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.code = code
	rw.ResponseWriter.WriteHeader(code)
}

// withMetrics records request counts and latency, labelling by a
// normalised path so that per-file or per-user paths never become
// high-cardinality label values.
func withMetrics(m *metrics.VaultMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := normalisePath(r.URL.Path)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.code)).Inc()
		m.HTTPDurationSeconds.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalisePath(p string) string {
	switch {
	case p == "/":
		return "/"
	case p == "/favicon.ico":
		return "/favicon.ico"
	case p == "/auth/request-challenge":
		return "/auth/request-challenge"
	case p == "/auth/answer-challenge":
		return "/auth/answer-challenge"
	case p == "/files/request-upload-url":
		return "/files/request-upload-url"
	case strings.HasPrefix(p, "/files/"):
		return "/files/"
	case strings.HasPrefix(p, "/users/"):
		return "/users/"
	case p == "/metrics":
		return "/metrics"
	default:
		return "/other"
	}
}
