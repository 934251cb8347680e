package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"svinn/internal/auth"
	"svinn/internal/log"
)

const (
	sessionCookieName = "svinn_session"
	sessionIDKey      = "sid"
	csrfCookieName    = "svinn_csrf"
	csrfFieldName     = "csrf_token"
)

type contextKey string

const sessionContextKey contextKey = "auth_session"

// sessionManager keeps the auth session id in a signed cookie.
type sessionManager struct {
	store *sessions.CookieStore
}

func newSessionManager(key []byte, secure bool, maxAge time.Duration) *sessionManager {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &sessionManager{store: store}
}

// sessionID returns the id stored in the request cookie, or "" when there
// is none or it no longer decodes.
func (m *sessionManager) sessionID(r *http.Request) string {
	sess, err := m.store.Get(r, sessionCookieName)
	if err != nil {
		var scErr securecookie.Error
		if errors.As(err, &scErr) && scErr.IsDecode() {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Ignoring undecodable session cookie")
		}
		return ""
	}
	id, _ := sess.Values[sessionIDKey].(string)
	return id
}

func (m *sessionManager) save(w http.ResponseWriter, r *http.Request, id string) error {
	sess, _ := m.store.Get(r, sessionCookieName)
	sess.Values[sessionIDKey] = id
	return sess.Save(r, w)
}

func (m *sessionManager) clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, sessionCookieName)
	delete(sess.Values, sessionIDKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// currentSession resolves the cookie to a live auth session.
func (s *Server) currentSession(r *http.Request) (auth.Session, bool) {
	id := s.sessions.sessionID(r)
	if id == "" {
		return auth.Session{}, false
	}
	return s.auth.Lookup(id)
}

func sessionFromContext(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(auth.Session)
	return sess, ok
}

func withSession(r *http.Request, sess auth.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess))
}

// requireSession sends visitors without a live session to the login page.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.currentSession(r)
		if !ok {
			if err := s.sessions.clear(w, r); err != nil {
				s.requestLogger(r).WarnContext(r.Context(), "Failed to clear session cookie", log.FieldError, err)
			}
			s.redirect(w, r, "/login")
			return
		}
		next.ServeHTTP(w, withSession(r, sess))
	})
}

// requireToken authenticates JSON API calls with a bearer token bound to a
// live session.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := s.tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			s.requestLogger(r).InfoContext(r.Context(), "Rejected API token", log.FieldError, err)
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		sess, ok := s.auth.Lookup(claims.SessionID)
		if !ok || sess.UserID != claims.UserID {
			writeJSONError(w, http.StatusUnauthorized, "session ended")
			return
		}
		next.ServeHTTP(w, withSession(r, sess))
	})
}

// requireIngestKey guards kiosk ingestion with the shared X-Ingest-Key.
func (s *Server) requireIngestKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.ingestKey == "" || s.clicks == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "click ingestion disabled")
			return
		}
		got := r.Header.Get("X-Ingest-Key")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.ingestKey)) != 1 {
			s.requestLogger(r).WarnContext(r.Context(), "Invalid ingest key",
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
			writeJSONError(w, http.StatusUnauthorized, "invalid ingest key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// csrfMiddleware protects the cookie-authenticated browser routes.
func (s *Server) csrfMiddleware() func(http.Handler) http.Handler {
	protect := csrf.Protect(s.csrfKey,
		csrf.Secure(s.secureCookies),
		csrf.Path("/"),
		csrf.CookieName(csrfCookieName),
		csrf.FieldName(csrfFieldName),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.requestLogger(r).WarnContext(r.Context(), "CSRF validation failed",
				log.FieldPath, r.URL.Path,
				log.FieldMethod, r.Method,
				"reason", csrf.FailureReason(r))
			if isHTMX(r) {
				NewHTMXResponse().Status(http.StatusForbidden).Header("HX-Redirect", "/login").Write(w)
				return
			}
			ErrorResponse(http.StatusForbidden, "Ogiltig eller saknad CSRF-token").Write(w)
		})),
	)
	return func(next http.Handler) http.Handler {
		h := protect(next)
		if s.secureCookies {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

// flagSuspicious logs requests matching known probing patterns.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason, ok := s.securityDetector.Detect(r); ok {
			s.requestLogger(r).WarnContext(r.Context(), "Suspicious request detected",
				log.FieldComponent, log.ComponentSecurity,
				"reason", reason,
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.requestLogger(r).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	ErrorResponse(http.StatusTooManyRequests, "För många förfrågningar, försök igen om en stund").Write(w)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// redirect navigates the browser, using HX-Redirect for htmx requests.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, to string) {
	if isHTMX(r) {
		NewHTMXResponse().Header("HX-Redirect", to).Write(w)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
