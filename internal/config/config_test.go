package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseURL(t *testing.T) {
	cases := []struct {
		in      string
		want    Endpoint
		wantErr bool
	}{
		{in: "ws://example.com/chat", want: Endpoint{Host: "example.com", Port: 80, Path: "/chat"}},
		{in: "wss://example.com/chat", want: Endpoint{Host: "example.com", Port: 443, Path: "/chat", UseTLS: true}},
		{in: "ws://10.0.0.1:9000", want: Endpoint{Host: "10.0.0.1", Port: 9000}},
		{in: "wss://edge.local:8443/v1/stream", want: Endpoint{Host: "edge.local", Port: 8443, Path: "/v1/stream", UseTLS: true}},
		{in: "http://example.com/", wantErr: true},
		{in: "ws://", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseURL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseURL(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseURL(%q): %v", tc.in, err)
		}
		if got.Host != tc.want.Host || got.Port != tc.want.Port || got.Path != tc.want.Path || got.UseTLS != tc.want.UseTLS {
			t.Fatalf("ParseURL(%q)=%+v want %+v", tc.in, got, tc.want)
		}
	}
}

func TestEndpointValidate(t *testing.T) {
	cases := []struct {
		name    string
		ep      Endpoint
		wantErr bool
	}{
		{"ok", Endpoint{Host: "example.com", Port: 80}, false},
		{"no host", Endpoint{Port: 80}, true},
		{"zero port", Endpoint{Host: "example.com"}, true},
		{"port too big", Endpoint{Host: "example.com", Port: 70000}, true},
		{"negative frame size", Endpoint{Host: "example.com", Port: 80, MaxFrameSize: -1}, true},
	}

	for _, tc := range cases {
		err := tc.ep.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
	}
}

func TestEndpointURL(t *testing.T) {
	ep := Endpoint{Host: "example.com", Port: 8443, Path: "/chat", UseTLS: true}
	if got := ep.URL(); got != "wss://example.com:8443/chat" {
		t.Fatalf("URL()=%q", got)
	}
	plain := Endpoint{Host: "example.com", Port: 80}
	if got := plain.URL(); got != "ws://example.com:80/" {
		t.Fatalf("URL()=%q", got)
	}
}

func TestLoadEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "endpoint.yaml")
	data := `name: staging
host: ws.staging.local
port: 9443
path: /v1/stream
use_tls: true
insecure: true
max_frame_size: 65536
headers:
  Authorization: Bearer tok
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	ep, err := LoadEndpoint(path)
	if err != nil {
		t.Fatalf("LoadEndpoint: %v", err)
	}
	if ep.Host != "ws.staging.local" || ep.Port != 9443 || !ep.UseTLS || !ep.Insecure {
		t.Fatalf("endpoint: %+v", ep)
	}
	if ep.MaxFrameSize != 65536 {
		t.Fatalf("max frame size: %d", ep.MaxFrameSize)
	}
	if ep.Headers["Authorization"] != "Bearer tok" {
		t.Fatalf("headers: %v", ep.Headers)
	}

	if _, err := LoadEndpoint(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("host: x\nport: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadEndpoint(bad); err == nil {
		t.Fatalf("expected validation error")
	}
}
