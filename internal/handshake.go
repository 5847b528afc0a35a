package internal

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
)

// upgradeAttempt is the transient state of one in-flight handshake. It exists
// from the moment the transport connects until the codec switch completes or
// the attempt fails, and is discarded afterwards.
type upgradeAttempt struct {
	host    string
	uri     string
	key     string
	headers http.Header
	tracker upgradeTracker
}

func newUpgradeAttempt(host, path string, headers http.Header) *upgradeAttempt {
	return &upgradeAttempt{
		host:    host,
		uri:     normalizePath(path),
		key:     handshakeKey(),
		headers: headers,
	}
}

// run drives the handshake on a connected transport. It writes the upgrade
// request, accumulates the streamed response, and on a 101 answer performs
// the one-shot switch from the HTTP codec to the frame codec: from that point
// the buffered reader and the raw conn belong to the socket, and any send
// issued inside onUpgrade already travels the WebSocket path. The socket's
// inbound loop starts only after onUpgrade returns, so callbacks registered
// there are in place before the first frame is delivered.
//
// On a non-101 answer the transport is deliberately left open; disposing of
// it is the caller's decision.
func (a *upgradeAttempt) run(conn net.Conn, br *bufio.Reader, cfg Config, group *LoopGroup, onUpgrade func(*Socket)) (*Socket, error) {
	bw := bufio.NewWriter(conn)
	req := buildUpgradeRequest(a.host, a.uri, a.key, a.headers)
	if err := req.Write(bw); err != nil {
		return nil, fmt.Errorf("write upgrade request: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("flush upgrade request: %w", err)
	}

	var head *http.Response
	err := readResponseEvents(br, func(ev responseEvent) {
		if h := a.tracker.consume(ev); h != nil {
			head = h
		}
	})
	if err != nil {
		return nil, err
	}

	if head.StatusCode != http.StatusSwitchingProtocols {
		return nil, &InvalidResponseStatusError{Head: head}
	}

	s := newSocket(conn, br, bw, cfg.MaxFrameSize, group.nextLoop())
	deregister, err := group.register(s)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.deregister = deregister

	onUpgrade(s)
	// A refused spawn means the group shut down in between; the registry
	// close already tore the socket down, so there is nothing to read.
	_ = group.spawn(s.readLoop)
	return s, nil
}
