package config

import (
	"fmt"
)

// Endpoint describes one WebSocket endpoint the CLI can connect to.
type Endpoint struct {
	Name         string            `json:"name" yaml:"name"`
	Host         string            `json:"host" yaml:"host"`
	Port         int               `json:"port" yaml:"port"`
	Path         string            `json:"path" yaml:"path"`
	UseTLS       bool              `json:"use_tls" yaml:"use_tls"`
	ServerName   string            `json:"server_name" yaml:"server_name"`
	Insecure     bool              `json:"insecure" yaml:"insecure"`
	MaxFrameSize int               `json:"max_frame_size" yaml:"max_frame_size"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
}

func (e *Endpoint) Validate() error {
	if e.Host == "" {
		return fmt.Errorf("host is required")
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("invalid port: %d", e.Port)
	}
	if e.MaxFrameSize < 0 {
		return fmt.Errorf("invalid max frame size: %d", e.MaxFrameSize)
	}
	return nil
}

// URL renders the endpoint back as a ws:// or wss:// URL.
func (e *Endpoint) URL() string {
	scheme := "ws"
	if e.UseTLS {
		scheme = "wss"
	}
	path := e.Path
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, e.Host, e.Port, path)
}
