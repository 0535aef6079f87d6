// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport owns the UNIX domain socket to a dtnd's application agent.
//
// A Conn moves length-prefixed frames: an 8-byte big-endian unsigned length,
// followed by exactly that many bytes. The frame's content is opaque here and
// handled by the wire package.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// LengthPrefixSize is the size of a frame's length prefix in bytes.
	LengthPrefixSize = 8

	// DefaultMaxFrameSize limits a single frame's body to 64 MiB.
	DefaultMaxFrameSize uint64 = 64 << 20

	// DefaultDialTimeout is used if Options.DialTimeout is zero.
	DefaultDialTimeout = 5 * time.Second
)

var (
	// ErrConnect is returned if the socket cannot be reached.
	ErrConnect = errors.New("cannot connect to agent socket")

	// ErrConnectionClosed indicates that the peer or this side closed the
	// connection, possibly within a frame.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrTimeout indicates an expired read or write deadline.
	ErrTimeout = errors.New("transport timeout")

	// ErrMalformedFrame indicates a zero or oversized length prefix.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Options for Dial and NewConn. The zero value is usable.
type Options struct {
	// MaxFrameSize limits incoming and outgoing frame bodies. Zero selects
	// DefaultMaxFrameSize.
	MaxFrameSize uint64

	// DialTimeout bounds the connect phase, excluding WaitForSocket.
	DialTimeout time.Duration

	// WaitForSocket, if positive, waits up to this duration for the socket
	// file to appear before dialing.
	WaitForSocket time.Duration

	// Logger defaults to logrus' standard logger.
	Logger log.FieldLogger
}

func (opts Options) maxFrameSize() uint64 {
	if opts.MaxFrameSize == 0 {
		return DefaultMaxFrameSize
	}
	return opts.MaxFrameSize
}

func (opts Options) logger() log.FieldLogger {
	if opts.Logger == nil {
		return log.StandardLogger()
	}
	return opts.Logger
}

// Conn is a framed connection. ReadFrame must only be called from one
// goroutine at a time, WriteFrame may be called concurrently.
type Conn struct {
	conn         net.Conn
	maxFrameSize uint64
	logger       log.FieldLogger

	readMutex  sync.Mutex
	writeMutex sync.Mutex

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	peer *PeerCredentials
}

// Dial the UNIX domain socket at path.
//
// All errors are wrapped around ErrConnect. The returned Conn must be closed
// by the caller.
func Dial(ctx context.Context, path string, opts Options) (*Conn, error) {
	logger := opts.logger().WithField("socket", path)

	if opts.WaitForSocket > 0 {
		if err := waitForSocket(ctx, path, opts.WaitForSocket, logger); err != nil {
			return nil, err
		}
	}

	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	netConn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnect, path, err)
	}

	c := NewConn(netConn, Options{MaxFrameSize: opts.MaxFrameSize, Logger: logger})

	if peer, peerErr := peerCredentials(netConn); peerErr != nil {
		logger.WithError(peerErr).Debug("Peer credentials are not available")
	} else {
		c.peer = peer
		logger.WithFields(log.Fields{
			"pid": peer.PID,
			"uid": peer.UID,
			"gid": peer.GID,
		}).Debug("Connected to agent socket")
	}

	return c, nil
}

// NewConn wraps an established net.Conn, e.g., an accepted connection.
func NewConn(netConn net.Conn, opts Options) *Conn {
	return &Conn{
		conn:         netConn,
		maxFrameSize: opts.maxFrameSize(),
		logger:       opts.logger(),
	}
}

// Peer returns the daemon's credentials, if the platform supports them.
func (c *Conn) Peer() *PeerCredentials {
	return c.peer
}

// SetReadDeadline for the next ReadFrame calls. A zero time disables it.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline for the next WriteFrame calls. A zero time disables it.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// Close the underlying socket. Subsequent calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
		c.logger.Debug("Closed transport")
	})
	return c.closeErr
}

// classify maps an I/O error to ErrConnectionClosed or ErrTimeout.
func (c *Conn) classify(op string, err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %s", ErrTimeout, op)

	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: %s: truncated frame", ErrConnectionClosed, op)

	case errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, io.ErrClosedPipe),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.ECONNRESET):
		return fmt.Errorf("%w: %s", ErrConnectionClosed, op)

	default:
		if c.closed.Load() {
			return fmt.Errorf("%w: %s", ErrConnectionClosed, op)
		}
		return fmt.Errorf("%w: %s: %w", ErrConnectionClosed, op, err)
	}
}
