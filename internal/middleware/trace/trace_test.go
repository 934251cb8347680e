package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"svinn/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Handler: slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})})
	m := NewMiddleware(log.NewStructuredLogger(logger), func(*http.Request) string { return "192.0.2.1" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
		_, _ = w.Write([]byte("ok"))
	}))

	t.Run("generates an id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if !strings.HasPrefix(seen, "req_") {
			t.Fatalf("request id = %q", seen)
		}
		if rr.Header().Get(HeaderRequestID) != seen {
			t.Fatalf("response header %q != context id %q", rr.Header().Get(HeaderRequestID), seen)
		}
	})

	t.Run("reuses a sane incoming id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/missing", nil)
		r.Header.Set(HeaderRequestID, "kiosk-42.a")
		h.ServeHTTP(httptest.NewRecorder(), r)
		if seen != "kiosk-42.a" {
			t.Fatalf("request id = %q", seen)
		}
	})

	t.Run("replaces a hostile incoming id", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderRequestID, "x\nlevel=ERROR")
		h.ServeHTTP(httptest.NewRecorder(), r)
		if !strings.HasPrefix(seen, "req_") {
			t.Fatalf("request id = %q", seen)
		}
	})

	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Fatalf("TotalRequests = %d, want 3", got)
	}
	out := buf.String()
	if !strings.Contains(out, "status_code=404") || !strings.Contains(out, "level=WARN") {
		t.Fatalf("404 should be logged as a warning:\n%s", out)
	}
	if !strings.Contains(out, "client_ip=192.0.2.1") {
		t.Fatalf("client ip missing from log:\n%s", out)
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(r.Context()); id != "" {
		t.Fatalf("GetRequestID() = %q, want empty", id)
	}
}
