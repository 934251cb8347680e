package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/csrf"

	"svinn/internal/auth"
	"svinn/internal/core"
	"svinn/internal/dashboard"
	"svinn/internal/export"
	"svinn/internal/log"
)

// Dashboard tabs.
const (
	tabHistory = "history"
	tabChart   = "chart"
)

// pageData feeds the login and dashboard templates.
type pageData struct {
	View      dashboard.View
	Tab       string
	CSRFField template.HTML
	CSRFToken string
	Email     string
	Error     string
}

func (s *Server) newPageData(r *http.Request) pageData {
	return pageData{
		CSRFField: csrf.TemplateField(r),
		CSRFToken: csrf.Token(r),
		Tab:       tabHistory,
	}
}

// controllerFor returns the dashboard controller of sess, running the
// approval check and first load when the controller is not signed in yet.
// The error is non-nil only when the user may not see the dashboard.
func (s *Server) controllerFor(ctx context.Context, sess auth.Session) (*dashboard.Controller, error) {
	c, _ := s.dashboards.For(sess)
	if c.State().Phase != dashboard.PhaseUnauthenticated {
		return c, nil
	}
	atomic.AddInt64(&s.appMetrics.fetches, 1)
	err := c.Activate(ctx, sess)
	switch {
	case err == nil, errors.Is(err, dashboard.ErrStale):
		return c, nil
	case errors.Is(err, dashboard.ErrFetchFailed):
		atomic.AddInt64(&s.appMetrics.fetchFailures, 1)
		return c, nil
	default:
		atomic.AddInt64(&s.appMetrics.rejections, 1)
		return nil, err
	}
}

// load fetches window and records the outcome in the metrics. Fetch
// failures end up in the view state, so only sign-in errors are returned.
func (s *Server) load(ctx context.Context, c *dashboard.Controller, window core.Window) error {
	atomic.AddInt64(&s.appMetrics.fetches, 1)
	err := c.Load(ctx, window)
	switch {
	case err == nil, errors.Is(err, dashboard.ErrStale):
		return nil
	case errors.Is(err, dashboard.ErrFetchFailed):
		atomic.AddInt64(&s.appMetrics.fetchFailures, 1)
		return nil
	default:
		return err
	}
}

// applyQuery applies ?days= and ?day= to the controller. A days value
// equal to the loaded window does not refetch unless the last fetch failed.
func (s *Server) applyQuery(ctx context.Context, c *dashboard.Controller, q url.Values) error {
	if raw := q.Get("days"); raw != "" {
		w, err := core.ParseWindow(raw)
		if err != nil {
			return err
		}
		st := c.State()
		if w != st.Window || st.Phase == dashboard.PhaseError {
			if err := s.load(ctx, c, w); err != nil {
				return err
			}
		}
	}
	if day := q.Get("day"); day != "" {
		if err := c.Select(day); err != nil {
			return err
		}
	}
	return nil
}

// queryStatus maps applyQuery errors to HTTP statuses and messages.
func queryStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidWindow):
		return http.StatusBadRequest, "Ogiltigt tidsintervall"
	case errors.Is(err, dashboard.ErrUnknownDay):
		return http.StatusNotFound, "Dagen finns inte i vald period"
	case errors.Is(err, dashboard.ErrNotReady):
		return http.StatusConflict, "Ingen data att välja bland"
	case errors.Is(err, dashboard.ErrApprovalPending):
		return http.StatusConflict, "Behörigheten kontrolleras, försök igen"
	case errors.Is(err, dashboard.ErrNotSignedIn):
		return http.StatusUnauthorized, "Du är utloggad"
	default:
		return http.StatusInternalServerError, dashboard.MsgFetchFailed
	}
}

func tabFrom(q url.Values) string {
	if q.Get("tab") == tabChart {
		return tabChart
	}
	return tabHistory
}

// rejectSession ends the browser session of a user the approval check
// turned away and shows the reason on the login page.
func (s *Server) rejectSession(w http.ResponseWriter, r *http.Request, sess auth.Session, err error) {
	s.requestLogger(r).WarnContext(r.Context(), "Dashboard access denied",
		log.FieldUserID, sess.UserID, log.FieldError, err)
	if cerr := s.sessions.clear(w, r); cerr != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Failed to clear session cookie", log.FieldError, cerr)
	}
	if isHTMX(r) {
		NewHTMXResponse().Status(http.StatusForbidden).Header("HX-Redirect", "/login").Write(w)
		return
	}
	data := s.newPageData(r)
	data.Email = sess.Email
	data.Error = auth.Message(err)
	s.render(w, r, http.StatusForbidden, "login.html", data)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	c, err := s.controllerFor(r.Context(), sess)
	if err != nil {
		s.rejectSession(w, r, sess, err)
		return
	}

	q := r.URL.Query()
	if err := s.applyQuery(r.Context(), c, q); err != nil {
		if errors.Is(err, dashboard.ErrNotSignedIn) {
			s.redirect(w, r, "/login")
			return
		}
		status, msg := queryStatus(err)
		ErrorResponse(status, msg).Write(w)
		return
	}

	data := s.newPageData(r)
	data.View = c.Snapshot()
	data.Tab = tabFrom(q)
	s.render(w, r, http.StatusOK, "dashboard.html", data)
}

// handleDashboardPartial re-renders the dashboard body for htmx swaps.
func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	c, err := s.controllerFor(r.Context(), sess)
	if err != nil {
		s.rejectSession(w, r, sess, err)
		return
	}

	q := r.URL.Query()
	if err := s.applyQuery(r.Context(), c, q); err != nil {
		if errors.Is(err, dashboard.ErrNotSignedIn) {
			s.redirect(w, r, "/login")
			return
		}
		status, msg := queryStatus(err)
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}

	data := s.newPageData(r)
	data.View = c.Snapshot()
	data.Tab = tabFrom(q)
	html, err := s.renderString("dashboard-content", data)
	if err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Template render failed", log.FieldError, err)
		InternalServerError("Kunde inte visa sidan").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(html).TriggerDashboardUpdated(data.View).TriggerTab(data.Tab).Write(w)
}

// handleRefresh refetches the current window.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	c, err := s.controllerFor(r.Context(), sess)
	if err != nil {
		s.rejectSession(w, r, sess, err)
		return
	}
	if err := s.load(r.Context(), c, c.State().Window); err != nil {
		if errors.Is(err, dashboard.ErrNotSignedIn) {
			s.redirect(w, r, "/login")
			return
		}
		status, msg := queryStatus(err)
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	data := s.newPageData(r)
	data.View = c.Snapshot()
	data.Tab = tabFrom(r.URL.Query())
	html, err := s.renderString("dashboard-content", data)
	if err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "Template render failed", log.FieldError, err)
		InternalServerError("Kunde inte visa sidan").Write(w)
		return
	}
	resp := NewHTMXResponse().BodyHTML(html).TriggerDashboardUpdated(data.View)
	if data.View.Phase == dashboard.PhaseError {
		resp.TriggerErrorNotification(dashboard.MsgFetchFailed)
	} else {
		resp.TriggerSuccessNotification("Data uppdaterad")
	}
	resp.Write(w)
}

// handleExport streams a PDF report of the current (or requested) window.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	c, err := s.controllerFor(r.Context(), sess)
	if err != nil {
		s.rejectSession(w, r, sess, err)
		return
	}
	q := url.Values{"days": r.URL.Query()["days"]}
	if err := s.applyQuery(r.Context(), c, q); err != nil {
		status, msg := queryStatus(err)
		ErrorResponse(status, msg).Write(w)
		return
	}

	v := c.Snapshot()
	if v.Phase != dashboard.PhaseReady {
		msg := v.Message
		if msg == "" {
			msg = dashboard.MsgNoHistory
		}
		ErrorResponse(http.StatusConflict, msg).Write(w)
		return
	}

	var buf bytes.Buffer
	if err := export.Render(&buf, v.Records, v.DisplayName, s.scheme); err != nil {
		s.requestLogger(r).ErrorContext(r.Context(), "PDF export failed",
			log.FieldComponent, log.ComponentExport, log.FieldError, err)
		InternalServerError("Kunde inte skapa rapporten").Write(w)
		return
	}
	atomic.AddInt64(&s.appMetrics.exports, 1)

	filename := fmt.Sprintf("svinn-%s-%dd.pdf", time.Now().Format("2006-01-02"), v.Window.Days())
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
