package internal

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Config carries the per-connection settings of a client. It is treated as
// immutable once a connection attempt starts.
type Config struct {
	// TLS, when non-nil, wraps the transport ahead of the handshake.
	// ServerName defaults to the connect host.
	TLS *tls.Config

	// MaxFrameSize bounds the payload length of inbound frames. Must be
	// positive.
	MaxFrameSize int
}

// DefaultConfig returns the default client configuration: no TLS, 16 KiB
// inbound frame limit.
func DefaultConfig() Config {
	return Config{MaxFrameSize: 1 << 14}
}

func (c Config) validate() error {
	if c.MaxFrameSize <= 0 {
		return fmt.Errorf("max frame size must be positive, got %d", c.MaxFrameSize)
	}
	return nil
}

// groupProvider records whether the client owns its loop group.
type groupProvider int

const (
	groupCreateNew groupProvider = iota
	groupShared
)

// Client dials WebSocket connections. A client either owns its loop group
// (NewClient) or borrows one (NewClientWithGroup). An owning client must be
// shut down with Shutdown before it is discarded; a borrowing client leaves
// the group's lifetime to whoever created the group.
type Client struct {
	provider groupProvider
	group    *LoopGroup
	cfg      Config
	shutdown atomic.Bool
}

// NewClient creates a client that owns its own loop group.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Client{provider: groupCreateNew, group: NewLoopGroup(0), cfg: cfg}, nil
}

// NewClientWithGroup creates a client on a caller-owned loop group. Shutdown
// never touches the group.
func NewClientWithGroup(group *LoopGroup, cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Client{provider: groupShared, group: group, cfg: cfg}, nil
}

// Group returns the loop group this client runs on.
func (c *Client) Group() *LoopGroup { return c.group }

// Connect dials host:port, performs the upgrade handshake on path, and hands
// the established socket to onUpgrade. It then blocks for the remainder of
// the connection's lifetime: the call returns nil once the connection has
// closed, or returns early with the dial, TLS, or handshake error. ctx bounds
// the dial and TLS phases only.
//
// When the server rejects the upgrade the error is an
// *InvalidResponseStatusError and the transport is deliberately left open;
// no handle to it is returned, so it lives until process exit reclaims the
// descriptor. There is no built-in handshake timeout beyond what ctx imposes
// on the dial.
func (c *Client) Connect(ctx context.Context, host string, port int, path string, headers http.Header, onUpgrade func(*Socket)) error {
	if c.shutdown.Load() {
		return ErrAlreadyShutdown
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	start := time.Now()
	d := &net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		observeUpgradeFailure(host, err)
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	if c.cfg.TLS != nil {
		tcfg := c.cfg.TLS.Clone()
		if tcfg.ServerName == "" {
			tcfg.ServerName = host
		}
		tconn := tls.Client(conn, tcfg)
		if err := tconn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			observeUpgradeFailure(host, err)
			return fmt.Errorf("tls handshake with %s: %w", addr, err)
		}
		conn = tconn
	}

	att := newUpgradeAttempt(host, path, headers)
	sock, err := att.run(conn, bufio.NewReader(conn), c.cfg, c.group, onUpgrade)
	if err != nil {
		observeUpgradeFailure(host, err)
		return err
	}
	observeConnect(host, time.Since(start))

	<-sock.Done()
	return nil
}

// Shutdown releases the client. On a shared group it only marks this client
// as done and always succeeds; the group itself is untouched. On an owned
// group exactly one call wins the flag transition and performs the blocking
// group shutdown; every later call returns ErrAlreadyShutdown.
func (c *Client) Shutdown() error {
	if c.provider == groupShared {
		c.shutdown.Store(true)
		return nil
	}
	if !c.shutdown.CompareAndSwap(false, true) {
		return ErrAlreadyShutdown
	}
	return c.group.Shutdown()
}
