// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"fmt"
	"time"
)

// State of a Session.
type State uint8

const (
	Disconnected State = iota
	Connecting
	Registering
	Ready
	Closing
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Registering:
		return "registering"
	case Ready:
		return "ready"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Event is emitted for each state transition and each warning.
type Event struct {
	Time time.Time

	// State after the transition, or the current one for warnings.
	State State

	// Warning is set for protocol errors, orphaned deliveries and ErrorFrames.
	Warning error
}

func (e Event) String() string {
	if e.Warning != nil {
		return fmt.Sprintf("%v: warning: %v", e.State, e.Warning)
	}
	return e.State.String()
}
