package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseURL turns a ws:// or wss:// URL into an Endpoint. Missing ports get
// the scheme default (80 for ws, 443 for wss).
func ParseURL(raw string) (*Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}

	var useTLS bool
	switch u.Scheme {
	case "ws":
	case "wss":
		useTLS = true
	default:
		return nil, fmt.Errorf("unsupported scheme: %q", u.Scheme)
	}

	port := 80
	if useTLS {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", p, err)
		}
	}

	ep := &Endpoint{
		Host:   u.Hostname(),
		Port:   port,
		Path:   u.Path,
		UseTLS: useTLS,
	}
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	return ep, nil
}

// LoadEndpoint reads one endpoint from a YAML file and validates it.
func LoadEndpoint(path string) (*Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var ep Endpoint
	if err := yaml.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := ep.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &ep, nil
}
