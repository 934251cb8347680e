package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDetect(t *testing.T) {
	d, err := NewDetector()
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	tests := []struct {
		name      string
		method    string
		target    string
		userAgent string
		want      bool
	}{
		{"dashboard", http.MethodGet, "/?days=30&tab=chart", "Mozilla/5.0", false},
		{"kiosk client", http.MethodPost, "/api/clicks", "curl/8.4.0", false},
		{"dotenv probe", http.MethodGet, "/.env", "Mozilla/5.0", true},
		{"traversal in query", http.MethodGet, "/ui/dashboard?day=../../etc/passwd", "", true},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", true},
		{"trace method", "TRACE", "/", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("User-Agent", tt.userAgent)
			reason, got := d.Detect(r)
			if got != tt.want {
				t.Fatalf("Detect() = %v (%q), want %v", got, reason, tt.want)
			}
			if got && reason == "" {
				t.Fatalf("flagged request needs a reason")
			}
		})
	}

	if m := d.GetMetrics(); m.SuspiciousRequests != 4 {
		t.Fatalf("SuspiciousRequests = %d, want 4", m.SuspiciousRequests)
	}
}

func TestExtractClientIP(t *testing.T) {
	d, err := NewDetector("203.0.113.0/24")
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		want       string
	}{
		{"direct", "198.51.100.7:5000", "", "", "198.51.100.7"},
		{"untrusted peer ignores header", "198.51.100.7:5000", "1.2.3.4", "", "198.51.100.7"},
		{"private proxy", "10.0.0.2:443", "1.2.3.4, 10.0.0.9", "", "1.2.3.4"},
		{"configured proxy", "203.0.113.5:443", "", "5.6.7.8", "5.6.7.8"},
		{"garbage header", "127.0.0.1:80", "not-an-ip", "", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := d.ExtractClientIP(r); got != tt.want {
				t.Fatalf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}

	if m := d.GetMetrics(); m.SpoofedForwarding != 1 {
		t.Fatalf("SpoofedForwarding = %d, want 1", m.SpoofedForwarding)
	}
}

func TestNewDetector_RejectsBadCIDR(t *testing.T) {
	if _, err := NewDetector("10.0.0.1"); err == nil {
		t.Fatal("expected error for address without mask")
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing basic headers: %v", rr.Header())
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Fatal("missing CSP")
	}
	if rr.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS must not be sent over plain HTTP")
	}

	rr = httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	h.ServeHTTP(rr, r)
	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("HSTS = %q", got)
	}
}
