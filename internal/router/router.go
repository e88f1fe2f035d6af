package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/access"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/assessment"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/session"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user"
	"github.com/ovaphlow/pitchfork/service-caps-intake/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-caps-intake/pkg/utilities"
)

// Prefix is the path every API route is mounted under.
const Prefix = "/caps-api"

// Identities re-reads the stored identity behind a session so role changes
// and deletions take effect on the next request.
type Identities interface {
	Get(ctx context.Context, id int64) (*entity.User, error)
}

// Deps are the services the routes are built from.
type Deps struct {
	Sessions    *session.Service
	Users       *user.UserService
	Assessments *assessment.Service
	Drafts      *assessment.Drafts
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

type requestIDKey struct{}

// RequestIDFrom returns the id assigned by RequestIDMiddleware.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a snowflake id.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 64 {
				id = utilities.NewSnowflakeID()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// LoggingMiddleware logs each request at debug level, server errors at error level.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			kv := []any{
				"request_id", RequestIDFrom(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"size", lrw.size,
			}
			if status >= http.StatusInternalServerError {
				logger.Errorw("http request", kv...)
				return
			}
			logger.Debugw("http request", kv...)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			// records carry patient data
			h.Set("Cache-Control", "no-store")
			if h.Get("Content-Security-Policy") == "" {
				h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware resolves the bearer token to a Principal. The identity is
// reloaded from the store on every request; a deleted identity or one whose
// role no longer matches the token is refused.
func AuthMiddleware(sessions *session.Service, ids Identities, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				writeError(w, apperr.ErrAuthFailed)
				return
			}
			claims, err := sessions.Parse(r.Context(), raw)
			if err != nil {
				logger.Debugw("session rejected", "request_id", RequestIDFrom(r.Context()), "err", err)
				writeError(w, err)
				return
			}
			uid, err := claims.UserID()
			if err != nil {
				writeError(w, err)
				return
			}
			u, err := ids.Get(r.Context(), uid)
			if errors.Is(err, apperr.ErrNotFound) {
				writeError(w, apperr.ErrAuthFailed)
				return
			}
			if err != nil {
				writeError(w, err)
				return
			}
			if u.Role != claims.Role || u.Username != claims.Username {
				writeError(w, apperr.ErrAuthFailed)
				return
			}
			p := session.Principal{AuthView: u.View(), SessionID: claims.ID, Claims: claims}
			next.ServeHTTP(w, r.WithContext(session.WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireAction refuses callers the access gate does not permit for action.
func RequireAction(action access.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := session.PrincipalFrom(r.Context())
			if !ok {
				writeError(w, apperr.ErrAuthFailed)
				return
			}
			if err := access.Require(p.AuthView, action); err != nil {
				writeError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const scheme = "Bearer "
	if len(h) <= len(scheme) || !strings.EqualFold(h[:len(scheme)], scheme) {
		return "", false
	}
	return strings.TrimSpace(h[len(scheme):]), true
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	msg := http.StatusText(status)
	if status == http.StatusUnauthorized {
		msg = "invalid credentials"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RegisterRoutes mounts every HTTP handler on a standard library ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, d Deps) http.Handler {
	mux := http.NewServeMux()

	authed := AuthMiddleware(d.Sessions, d.Users, logger)
	own := func(h http.HandlerFunc) http.Handler {
		return authed(RequireAction(access.ManageOwnAssessments)(h))
	}
	all := func(h http.HandlerFunc) http.Handler {
		return authed(RequireAction(access.ManageAllAssessments)(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authed(RequireAction(access.ManageIdentities)(h))
	}

	mux.HandleFunc("GET "+Prefix+"/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// session routes
	sessionHandler := session.NewHandler(d.Sessions, d.Users, d.Drafts, logger)
	mux.HandleFunc("POST "+Prefix+"/login", sessionHandler.Login)
	mux.Handle("POST "+Prefix+"/logout", authed(http.HandlerFunc(sessionHandler.Logout)))
	mux.Handle("GET "+Prefix+"/me", authed(http.HandlerFunc(sessionHandler.Me)))

	// assessment routes
	ah := assessment.NewHandler(d.Assessments, d.Drafts, logger)
	mux.Handle("GET "+Prefix+"/assessments", all(ah.List))
	mux.Handle("POST "+Prefix+"/assessments", own(ah.Create))
	mux.Handle("GET "+Prefix+"/assessments/lookup", own(ah.Lookup))
	mux.Handle("GET "+Prefix+"/assessments/patients", own(ah.Patients))
	mux.Handle("GET "+Prefix+"/assessments/patients/dates", own(ah.PatientDates))
	mux.Handle("GET "+Prefix+"/assessments/export", all(ah.Export))
	mux.Handle("GET "+Prefix+"/assessments/{id}", own(ah.Get))
	mux.Handle("PUT "+Prefix+"/assessments/{id}", own(ah.Update))
	mux.Handle("DELETE "+Prefix+"/assessments/{id}", own(ah.Delete))
	mux.Handle("GET "+Prefix+"/assessments/{id}/document", own(ah.Document))

	// draft routes
	mux.Handle("POST "+Prefix+"/draft", own(ah.BeginEdit))
	mux.Handle("GET "+Prefix+"/draft", own(ah.GetDraft))
	mux.Handle("PUT "+Prefix+"/draft", own(ah.SaveDraft))
	mux.Handle("DELETE "+Prefix+"/draft", own(ah.CancelDraft))
	mux.Handle("POST "+Prefix+"/draft/commit", own(ah.CommitDraft))

	// identity routes
	uh := user.NewHandler(d.Users, logger)
	mux.Handle("GET "+Prefix+"/users", admin(uh.List))
	mux.Handle("POST "+Prefix+"/users", admin(uh.Create))
	mux.Handle("PATCH "+Prefix+"/users/{id}", admin(uh.Update))
	mux.Handle("DELETE "+Prefix+"/users/{id}", admin(uh.Delete))

	return RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}
