// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"errors"
	"fmt"

	"github.com/dtn7/dtnclient-go/pkg/registry"
	"github.com/dtn7/dtnclient-go/pkg/transport"
)

var (
	// ErrConnect is returned if the daemon's socket cannot be reached.
	ErrConnect = transport.ErrConnect

	// ErrProtocol indicates a message the session could not make sense of.
	ErrProtocol = errors.New("agent protocol error")

	// ErrRegistrationFailed is returned if the daemon refused a registration.
	ErrRegistrationFailed = errors.New("registration failed")

	// ErrAlreadyRegistered is returned for an EndpointID registered on this session.
	ErrAlreadyRegistered = registry.ErrAlreadyRegistered

	// ErrNotRegistered is returned for an EndpointID not registered on this session.
	ErrNotRegistered = registry.ErrNotRegistered

	// ErrSubmitRejected is returned if the daemon refused to create a Bundle.
	ErrSubmitRejected = errors.New("bundle submission rejected")

	// ErrTimeout is returned if a request or receive timed out.
	ErrTimeout = errors.New("timeout")

	// ErrSessionClosed is returned by all operations of a closed session and
	// to all callers blocked while it was closed.
	ErrSessionClosed = errors.New("session closed")

	// ErrUnexpectedResponse indicates a response without a matching request.
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// DaemonError is the daemon's refusal of a request.
type DaemonError struct {
	Op      string
	Message string

	// Err is one of the sentinel errors, e.g., ErrSubmitRejected.
	Err error
}

func (e *DaemonError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Message)
}

func (e *DaemonError) Unwrap() error {
	return e.Err
}
