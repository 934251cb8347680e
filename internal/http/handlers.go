package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// appMetrics counts application events for /metrics.
type appMetrics struct {
	logins        int64
	loginFailures int64
	rejections    int64
	fetches       int64
	fetchFailures int64
	clicks        int64
	exports       int64
	uptime        time.Time
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	}
	writeJSON(w, http.StatusOK, health)
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)
	fail := func(name, reason string) {
		checks[name] = reason
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	}

	if s.templates == nil {
		fail("templates", "failed: templates not loaded")
	} else {
		checks["templates"] = "ok"
	}

	if s.backend == nil {
		fail("backend", "not_configured")
	} else if err := s.backend.Ping(ctx); err != nil {
		fail("backend", fmt.Sprintf("failed: %v", err))
	} else {
		checks["backend"] = "ok"
	}

	checks["dashboards"] = map[string]any{
		"active_sessions": s.dashboards.Len(),
		"status":          "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}
	if s.clicks != nil {
		checks["click_ingestion"] = map[string]any{
			"enabled": s.ingestKey != "",
			"queued":  s.clicks.Queued(),
		}
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()

	w.WriteHeader(http.StatusOK)

	metric := func(name, help, kind string, value int64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
		fmt.Fprintf(w, "%s %d\n\n", name, value)
	}

	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_response_time_avg_microseconds", "Average response time", "gauge", traceMetrics.AverageResponseTime)
	metric("logins_total", "Successful dashboard sign-ins", "counter", atomic.LoadInt64(&s.appMetrics.logins))
	metric("login_failures_total", "Rejected sign-in attempts", "counter", atomic.LoadInt64(&s.appMetrics.loginFailures))
	metric("approval_rejections_total", "Signed-in users turned away by the approval check", "counter", atomic.LoadInt64(&s.appMetrics.rejections))
	metric("dashboard_fetches_total", "Daily counter fetches started", "counter", atomic.LoadInt64(&s.appMetrics.fetches))
	metric("dashboard_fetch_failures_total", "Daily counter fetches that failed", "counter", atomic.LoadInt64(&s.appMetrics.fetchFailures))
	metric("clicks_total", "Kiosk clicks accepted", "counter", atomic.LoadInt64(&s.appMetrics.clicks))
	metric("exports_total", "PDF reports generated", "counter", atomic.LoadInt64(&s.appMetrics.exports))
	metric("dashboard_sessions", "Sessions holding dashboard state", "gauge", int64(s.dashboards.Len()))
	metric("rate_limit_hits_total", "Total rate limit hits", "counter", rateLimitMetrics.TotalHits)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("spoofed_forwarding_total", "Forwarding headers sent by untrusted peers", "counter", securityMetrics.SpoofedForwarding)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", int64(s.rateLimiter.ActiveClients()))
	metric("uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.appMetrics.uptime).Seconds()))
}
