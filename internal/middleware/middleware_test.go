package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	Security(true)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/contact", nil))

	for _, h := range []string{
		"Strict-Transport-Security", "Content-Security-Policy", "X-Frame-Options",
		"X-Content-Type-Options", "Referrer-Policy", "Permissions-Policy",
	} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}

	rec = httptest.NewRecorder()
	Security(false)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must be off when disabled")
	}
}

func TestForceHTTPS(t *testing.T) {
	h := ForceHTTPS(true, ok)

	cases := []struct {
		host, proto string
		want        int
	}{
		{"forms.example.com", "", http.StatusPermanentRedirect},
		{"forms.example.com", "https", http.StatusOK},
		{"localhost:8080", "", http.StatusOK},
		{"127.0.0.1:8080", "", http.StatusOK},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/contact?x=1", nil)
		req.Host = c.host
		if c.proto != "" {
			req.Header.Set("X-Forwarded-Proto", c.proto)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != c.want {
			t.Errorf("%s proto=%q: status %d, want %d", c.host, c.proto, rec.Code, c.want)
		}
		if c.want == http.StatusPermanentRedirect {
			if loc := rec.Header().Get("Location"); loc != "https://forms.example.com/contact?x=1" {
				t.Errorf("Location = %q", loc)
			}
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "forms.example.com"
	ForceHTTPS(false, ok).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("disabled: status %d", rec.Code)
	}
}
