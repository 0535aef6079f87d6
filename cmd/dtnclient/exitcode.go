// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/client"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

// Exit codes, one per error kind.
const (
	exitOK = iota
	exitUsage
	exitConnect
	exitProtocol
	exitRegistrationFailed
	exitAlreadyRegistered
	exitNotRegistered
	exitSubmitRejected
	exitTimeout
	exitSessionClosed
	exitOther
)

// usageError is a malformed command line.
type usageError struct {
	msg string
}

func usagef(format string, a ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

func (e *usageError) Error() string {
	return e.msg
}

// exitCode for an error returned by a subcommand.
//
// Refusals are checked before ErrProtocol, because a refused deregistration
// wraps ErrProtocol as well.
func exitCode(err error) int {
	var usage *usageError

	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &usage),
		errors.Is(err, bpv7.ErrInvalidEndpoint),
		errors.Is(err, wire.ErrInvalidMessage):
		return exitUsage
	case errors.Is(err, client.ErrConnect):
		return exitConnect
	case errors.Is(err, client.ErrRegistrationFailed):
		return exitRegistrationFailed
	case errors.Is(err, client.ErrAlreadyRegistered):
		return exitAlreadyRegistered
	case errors.Is(err, client.ErrNotRegistered):
		return exitNotRegistered
	case errors.Is(err, client.ErrSubmitRejected):
		return exitSubmitRejected
	case errors.Is(err, client.ErrTimeout):
		return exitTimeout
	case errors.Is(err, client.ErrSessionClosed):
		return exitSessionClosed
	case errors.Is(err, client.ErrProtocol), errors.Is(err, client.ErrUnexpectedResponse):
		return exitProtocol
	default:
		return exitOther
	}
}
