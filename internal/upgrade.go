package internal

import (
	"net/http"
	"net/url"
)

const websocketVersion = "13"

// normalizePath maps the caller-supplied request path onto a valid
// request-target: empty becomes "/", anything without a leading slash gets
// one prepended.
func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}

// buildUpgradeRequest assembles the HTTP/1.1 upgrade request for one
// handshake attempt. Extra headers are appended after the handshake headers.
// No Origin header is set; a User-Agent is only sent if the caller supplies
// one (the nil entry suppresses the stdlib default).
func buildUpgradeRequest(host, path, key string, extra http.Header) *http.Request {
	req := &http.Request{
		Method:     http.MethodGet,
		URL:        &url.URL{Path: normalizePath(path)},
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Host:       host,
		Header: http.Header{
			"User-Agent": nil,
		},
	}
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", websocketVersion)
	req.Header.Set("Sec-WebSocket-Key", key)
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req
}
