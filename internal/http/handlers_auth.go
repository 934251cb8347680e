package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"svinn/internal/auth"
	"svinn/internal/log"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.currentSession(r); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", s.newPageData(r))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<16)
	if err := r.ParseForm(); err != nil {
		data := s.newPageData(r)
		data.Error = auth.MsgSignInFailed
		s.render(w, r, http.StatusBadRequest, "login.html", data)
		return
	}
	email := sanitizeInput(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	logger := s.requestLogger(r)

	sess, err := s.auth.SignInWithPassword(r.Context(), email, password)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.loginFailures, 1)
		status := http.StatusUnauthorized
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			status = http.StatusInternalServerError
			logger.ErrorContext(r.Context(), "Sign-in failed", log.FieldOperation, log.OpSignIn, log.FieldError, err)
		}
		data := s.newPageData(r)
		data.Email = email
		data.Error = auth.Message(err)
		s.render(w, r, status, "login.html", data)
		return
	}

	if err := s.sessions.save(w, r, sess.ID); err != nil {
		logger.ErrorContext(r.Context(), "Failed to save session cookie", log.FieldError, err)
		_ = s.auth.SignOut(r.Context(), sess.ID)
		data := s.newPageData(r)
		data.Email = email
		data.Error = auth.MsgSignInFailed
		s.render(w, r, http.StatusInternalServerError, "login.html", data)
		return
	}

	if _, err := s.controllerFor(r.Context(), sess); err != nil {
		s.rejectSession(w, r, sess, err)
		return
	}

	atomic.AddInt64(&s.appMetrics.logins, 1)
	logger.InfoContext(r.Context(), "User signed in",
		log.FieldOperation, log.OpSignIn, log.FieldUserID, sess.UserID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogout works in every dashboard state, including errors.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	if err := s.auth.SignOut(r.Context(), sess.ID); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
		s.requestLogger(r).ErrorContext(r.Context(), "Sign-out failed",
			log.FieldOperation, log.OpSignOut, log.FieldError, err)
	}
	// The SignedOut event normally releases the controller already.
	s.dashboards.Remove(sess.ID)
	// The next sign-in re-reads profiles.approved.
	if s.gate != nil {
		s.gate.Forget(sess.UserID)
	}
	if err := s.sessions.clear(w, r); err != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Failed to clear session cookie", log.FieldError, err)
	}
	s.requestLogger(r).InfoContext(r.Context(), "User signed out",
		log.FieldOperation, log.OpSignOut, log.FieldUserID, sess.UserID)
	s.redirect(w, r, "/login")
}
