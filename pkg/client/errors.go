// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"github.com/dtn7/dtnclient-go/pkg/session"
)

// Errors returned by a Client, matched with errors.Is.
var (
	ErrConnect            = session.ErrConnect
	ErrProtocol           = session.ErrProtocol
	ErrRegistrationFailed = session.ErrRegistrationFailed
	ErrAlreadyRegistered  = session.ErrAlreadyRegistered
	ErrNotRegistered      = session.ErrNotRegistered
	ErrSubmitRejected     = session.ErrSubmitRejected
	ErrTimeout            = session.ErrTimeout
	ErrSessionClosed      = session.ErrSessionClosed
	ErrUnexpectedResponse = session.ErrUnexpectedResponse
)

// DaemonError is the daemon's refusal of a request.
type DaemonError = session.DaemonError
