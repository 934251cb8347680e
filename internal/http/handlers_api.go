package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"svinn/internal/auth"
	"svinn/internal/core"
	"svinn/internal/dashboard"
	"svinn/internal/log"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// handleIssueToken exchanges credentials of an approved user for a bearer
// token. The token dies with its session.
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	logger := s.requestLogger(r)

	sess, err := s.auth.SignInWithPassword(r.Context(), sanitizeInput(req.Email), req.Password)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.loginFailures, 1)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSONError(w, http.StatusUnauthorized, auth.Message(err))
			return
		}
		logger.ErrorContext(r.Context(), "API sign-in failed", log.FieldOperation, log.OpSignIn, log.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, auth.Message(err))
		return
	}

	if err := s.gate.Check(r.Context(), sess.UserID); err != nil {
		atomic.AddInt64(&s.appMetrics.rejections, 1)
		_ = s.auth.SignOut(r.Context(), sess.ID)
		status := http.StatusForbidden
		if errors.Is(err, auth.ErrApprovalLookup) {
			status = http.StatusServiceUnavailable
		}
		writeJSONError(w, status, auth.Message(err))
		return
	}

	token, err := s.tokens.Issue(sess)
	if err != nil {
		logger.ErrorContext(r.Context(), "Token issue failed", log.FieldError, err)
		_ = s.auth.SignOut(r.Context(), sess.ID)
		writeJSONError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	atomic.AddInt64(&s.appMetrics.logins, 1)
	logger.InfoContext(r.Context(), "API token issued", log.FieldUserID, sess.UserID)
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
	})
}

// handleAPIView returns the dashboard snapshot of the token's session.
func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	c, err := s.controllerFor(r.Context(), sess)
	if err != nil {
		status := http.StatusForbidden
		if errors.Is(err, auth.ErrApprovalLookup) {
			status = http.StatusServiceUnavailable
		}
		writeJSONError(w, status, auth.Message(err))
		return
	}
	if err := s.applyQuery(r.Context(), c, r.URL.Query()); err != nil {
		status, msg := queryStatus(err)
		writeJSONError(w, status, msg)
		return
	}

	v := c.Snapshot()
	status := http.StatusOK
	if v.Phase == dashboard.PhaseError {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, v)
}

type clickRequest struct {
	Category any `json:"category"`
}

// handleRecordClick ingests one kiosk click.
func (s *Server) handleRecordClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<12)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Category == nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "category is required")
		return
	}
	cat, err := core.ParseCategory(fmt.Sprint(req.Category))
	if err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rc, err := s.clicks.RecordClick(r.Context(), cat)
	if err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Recording click failed",
			log.FieldComponent, log.ComponentClicks, log.FieldCategory, cat.Key(), log.FieldError, err)
		writeJSONError(w, http.StatusInternalServerError, "could not record click")
		return
	}
	atomic.AddInt64(&s.appMetrics.clicks, 1)
	s.events.LogClickRecorded(r.Context(), rc.Day, cat.Key(), 1, rc.MessageID)

	status := http.StatusCreated
	if rc.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, rc)
}
