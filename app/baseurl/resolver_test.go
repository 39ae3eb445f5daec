package baseurl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolvePrecedence(t *testing.T) {
	prod := Config{ProductionDomain: "school.example.com"}

	cases := []struct {
		name       string
		cfg        Config
		req        Request
		wantOrigin string
		wantSource Source
	}{
		{
			name:       "configured origin beats loopback host",
			cfg:        Config{PublicOrigin: "https://pay.school.example.com/", ProductionDomain: "school.example.com"},
			req:        Request{Host: "localhost:8080", Scheme: "http"},
			wantOrigin: "https://pay.school.example.com",
			wantSource: SourceConfiguredOrigin,
		},
		{
			name:       "configured origin with bad scheme ignored",
			cfg:        Config{PublicOrigin: "ftp://school.example.com", ProductionDomain: "school.example.com"},
			req:        Request{Host: "api.school.example.com", Scheme: "http"},
			wantOrigin: "http://api.school.example.com",
			wantSource: SourceHost,
		},
		{
			name:       "configured origin prefix-only string ignored",
			cfg:        Config{PublicOrigin: "https//school.example.com"},
			req:        Request{Host: "api.school.example.com", Scheme: "https"},
			wantOrigin: "https://api.school.example.com",
			wantSource: SourceHost,
		},
		{
			name:       "production forwarded host beats other tunnel referer",
			cfg:        prod,
			req:        Request{ForwardedHost: "app.school.example.com", ForwardedProto: "https", Referer: "https://abc.ngrok.io/pay", Host: "10.0.0.5:8080"},
			wantOrigin: "https://app.school.example.com",
			wantSource: SourceForwardedHostProd,
		},
		{
			name:       "production referer beats non production forwarded host",
			cfg:        prod,
			req:        Request{ForwardedHost: "abc.ngrok.io", Referer: "https://school.example.com/billing", Host: "localhost"},
			wantOrigin: "https://school.example.com",
			wantSource: SourceRefererProd,
		},
		{
			name:       "tunnel forwarded host",
			cfg:        prod,
			req:        Request{ForwardedHost: "abc.ngrok.io, proxy.internal", Referer: "http://localhost:3000/", Host: "localhost:8080"},
			wantOrigin: "https://abc.ngrok.io",
			wantSource: SourceForwardedHost,
		},
		{
			name:       "loopback forwarded host skipped for referer",
			cfg:        prod,
			req:        Request{ForwardedHost: "127.0.0.1:8080", Referer: "https://staging.example.net/x", Host: "localhost"},
			wantOrigin: "https://staging.example.net",
			wantSource: SourceReferer,
		},
		{
			name:       "production host beats request origin without configuration",
			cfg:        Config{ProductionDomain: "school.example.com"},
			req:        Request{Host: "school.example.com", Scheme: "http", ForwardedProto: "https"},
			wantOrigin: "https://school.example.com",
			wantSource: SourceHost,
		},
		{
			name:       "production fallback when only loopback values",
			cfg:        Config{ProductionDomain: "school.example.com", Production: true},
			req:        Request{Host: "127.0.0.1:8080", Scheme: "http"},
			wantOrigin: "https://school.example.com",
			wantSource: SourceProductionFallback,
		},
		{
			name:       "development loopback request origin",
			cfg:        Config{ProductionDomain: "school.example.com"},
			req:        Request{Host: "localhost:8080", Scheme: "http"},
			wantOrigin: "http://localhost:8080",
			wantSource: SourceRequestOrigin,
		},
		{
			name:       "malformed forwarded host ignored",
			cfg:        Config{},
			req:        Request{ForwardedHost: "evil.com/path", Host: "localhost:8080"},
			wantOrigin: "http://localhost:8080",
			wantSource: SourceRequestOrigin,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.cfg, tc.req)
			assert.Equal(t, tc.wantOrigin, got.Origin)
			assert.Equal(t, tc.wantSource, got.Source)
		})
	}
}

func TestIsLoopback(t *testing.T) {
	for _, host := range []string{"localhost", "localhost:8080", "app.localhost", "127.0.0.1", "127.10.0.1:3000", "[::1]:8080", "::1", "0.0.0.0"} {
		assert.Truef(t, IsLoopback(host), "expected loopback for %s", host)
	}
	for _, host := range []string{"school.example.com", "10.0.0.5", "192.168.1.10:8080", "localhost.example.com"} {
		assert.Falsef(t, IsLoopback(host), "expected non-loopback for %s", host)
	}
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "https://school.example.com/payments/return", Join("https://school.example.com/", "/payments/return"))
	assert.Equal(t, "https://school.example.com/payments/return", Join("https://school.example.com", "payments/return"))
	assert.Equal(t, "https://other.example.com/done", Join("https://school.example.com", "https://other.example.com/done"))
	assert.Equal(t, "https://school.example.com", Join("https://school.example.com", ""))
}

func TestIsAbsoluteHTTPURL(t *testing.T) {
	assert.True(t, IsAbsoluteHTTPURL("https://school.example.com/a"))
	assert.True(t, IsAbsoluteHTTPURL("HTTP://school.example.com"))
	assert.False(t, IsAbsoluteHTTPURL("javascript:alert(1)"))
	assert.False(t, IsAbsoluteHTTPURL("/relative/path"))
	assert.False(t, IsAbsoluteHTTPURL("https://"))
}
