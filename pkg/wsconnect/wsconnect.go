package wsconnect

// Package wsconnect provides a small public surface for reusing this
// repository as a library. The implementation lives in internal/ and may
// change without notice.

import (
	"context"

	"wsconnect/internal"
)

// --- Config ---

type Config = internal.Config

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config { return internal.DefaultConfig() }

// --- Client ---

type Client = internal.Client

type LoopGroup = internal.LoopGroup

// NewClient creates a client that owns its own loop group. It must be shut
// down with Shutdown before being discarded.
func NewClient(cfg Config) (*Client, error) { return internal.NewClient(cfg) }

// NewClientWithGroup creates a client on a caller-owned loop group.
func NewClientWithGroup(group *LoopGroup, cfg Config) (*Client, error) {
	return internal.NewClientWithGroup(group, cfg)
}

// NewLoopGroup starts a group of n event loops; n <= 0 means one per CPU.
func NewLoopGroup(n int) *LoopGroup { return internal.NewLoopGroup(n) }

// --- Socket ---

type Socket = internal.Socket

type Opcode = internal.Opcode

type CloseCode = internal.CloseCode

const (
	OpContinuation = internal.OpContinuation
	OpText         = internal.OpText
	OpBinary       = internal.OpBinary
	OpClose        = internal.OpClose
	OpPing         = internal.OpPing
	OpPong         = internal.OpPong

	CloseNormalClosure = internal.CloseNormalClosure
	CloseGoingAway     = internal.CloseGoingAway
	CloseNoStatus      = internal.CloseNoStatus
)

// OpenSockets reports how many sockets are currently open process-wide. It
// exists for leak checks in tests: every socket must be closed before it is
// discarded.
func OpenSockets() int { return internal.OpenSockets() }

// --- Errors ---

type InvalidResponseStatusError = internal.InvalidResponseStatusError

var ErrAlreadyShutdown = internal.ErrAlreadyShutdown

var ErrFrameTooLarge = internal.ErrFrameTooLarge

// --- Metrics ---

// EnableMetrics registers and enables the default connector metrics.
func EnableMetrics() { internal.EnableMetrics() }

// StartMetricsServer serves the metrics text exposition on addr until ctx is
// done.
func StartMetricsServer(ctx context.Context, addr string) error {
	return internal.StartMetricsServer(ctx, addr)
}
