package ipfilter

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name          string
		ranges        []string
		source        string
		allowAnyRange bool
		allowed       bool
		wantErr       error
	}{
		{
			name:    "empty list allows any source",
			ranges:  nil,
			source:  "203.0.113.5",
			allowed: true,
		},
		{
			name:    "exact address match",
			ranges:  []string{"203.0.113.5"},
			source:  "203.0.113.5",
			allowed: true,
		},
		{
			name:    "cidr match",
			ranges:  []string{"203.0.113.0/24"},
			source:  "203.0.113.200",
			allowed: true,
		},
		{
			name:    "cidr mismatch",
			ranges:  []string{"203.0.113.0/24"},
			source:  "198.51.100.1",
			allowed: false,
		},
		{
			name:    "second entry matches",
			ranges:  []string{"198.51.100.0/24", "203.0.113.0/24"},
			source:  "203.0.113.7",
			allowed: true,
		},
		{
			name:    "ipv6 cidr match",
			ranges:  []string{"2001:db8::/32"},
			source:  "2001:db8:1::1",
			allowed: true,
		},
		{
			name:    "no cross family match",
			ranges:  []string{"203.0.113.0/24"},
			source:  "2001:db8::1",
			allowed: false,
		},
		{
			name:    "v4-mapped source matches v4 range",
			ranges:  []string{"203.0.113.0/24"},
			source:  "::ffff:203.0.113.9",
			allowed: true,
		},
		{
			name:    "v4-mapped range matches v4 source",
			ranges:  []string{"::ffff:203.0.113.0/120"},
			source:  "203.0.113.9",
			allowed: true,
		},
		{
			name:    "malformed entry fails closed",
			ranges:  []string{"203.0.113.0/24", "not-an-ip"},
			source:  "203.0.113.5",
			wantErr: ErrBadRange,
		},
		{
			name:    "malformed entry fails closed even after a match candidate",
			ranges:  []string{"10.0.0.0/8/extra"},
			source:  "10.1.2.3",
			wantErr: ErrBadRange,
		},
		{
			name:    "empty entry fails closed",
			ranges:  []string{""},
			source:  "203.0.113.5",
			wantErr: ErrBadRange,
		},
		{
			name:    "full v4 range rejected by default",
			ranges:  []string{"0.0.0.0/0"},
			source:  "203.0.113.5",
			wantErr: ErrRangeTooBroad,
		},
		{
			name:    "full v6 range rejected by default",
			ranges:  []string{"::/0"},
			source:  "2001:db8::1",
			wantErr: ErrRangeTooBroad,
		},
		{
			name:          "full range allowed when configured",
			ranges:        []string{"0.0.0.0/0"},
			source:        "203.0.113.5",
			allowAnyRange: true,
			allowed:       true,
		},
		{
			name:    "nil source denied by non-empty list",
			ranges:  []string{"203.0.113.0/24"},
			source:  "",
			allowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var source net.IP
			if tt.source != "" {
				source = net.ParseIP(tt.source)
				if source == nil {
					t.Fatalf("bad test source %q", tt.source)
				}
			}

			allowed, err := Evaluate(tt.ranges, source, tt.allowAnyRange)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if allowed {
					t.Error("allowed despite configuration error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v", allowed, tt.allowed)
			}
		})
	}
}

func TestFilterLenient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := New([]string{"203.0.113.0/24", "bogus", ""}, logger)

	if !f.Enabled() {
		t.Fatal("filter with valid entries not enabled")
	}
	if f.Count() != 1 {
		t.Errorf("Count = %d, want 1 (invalid entries skipped)", f.Count())
	}
	if !f.IsAllowed(net.ParseIP("203.0.113.5")) {
		t.Error("address inside allowed network rejected")
	}
	if f.IsAllowed(net.ParseIP("198.51.100.1")) {
		t.Error("address outside allowed network accepted")
	}

	empty := New(nil, logger)
	if empty.Enabled() {
		t.Error("empty filter reports enabled")
	}
	if !empty.IsAllowed(net.ParseIP("198.51.100.1")) {
		t.Error("empty filter must allow all")
	}
}

func TestFilterHTTPMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := New([]string{"203.0.113.0/24"}, logger)

	handler := f.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("allowed address got status %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/metrics", nil)
	req.RemoteAddr = "198.51.100.1:54321"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("blocked address got status %d", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xRealIP    string
		want       string
	}{
		{"remote addr only", "203.0.113.5:1234", "", "", "203.0.113.5"},
		{"x-forwarded-for wins", "10.0.0.1:1234", "203.0.113.5, 10.0.0.1", "", "203.0.113.5"},
		{"x-real-ip fallback", "10.0.0.1:1234", "", "203.0.113.7", "203.0.113.7"},
		{"remote addr without port", "203.0.113.5", "", "", "203.0.113.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			ip := GetClientIP(req)
			if ip == nil || ip.String() != tt.want {
				t.Errorf("GetClientIP = %v, want %s", ip, tt.want)
			}
		})
	}
}
