// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

// Submission describes a Bundle to be created by the daemon.
type Submission struct {
	Source      bpv7.EndpointID
	Destination bpv7.EndpointID
	Payload     []byte

	// Lifetime defaults to the Client's default lifetime.
	Lifetime time.Duration

	ControlFlags bpv7.BundleControlFlags
	ReportTo     bpv7.EndpointID
	HopLimit     uint8
	CRC          bpv7.CRCType
}

// SubmissionResult is the daemon's acceptance of a Submission.
type SubmissionResult struct {
	BundleID    string
	Source      bpv7.EndpointID
	Destination bpv7.EndpointID
	Size        int
	Submitted   time.Time
}

func (sub Submission) args(defaultLifetime time.Duration) wire.BundleArgs {
	lifetime := sub.Lifetime
	if lifetime <= 0 {
		lifetime = defaultLifetime
	}

	return wire.BundleArgs{
		Source:               sub.Source,
		Destination:          sub.Destination,
		CreationTimestampNow: true,
		Lifetime:             lifetime.String(),
		Payload:              sub.Payload,
		ControlFlags:         sub.ControlFlags,
		HopLimit:             uint64(sub.HopLimit),
		ReportTo:             sub.ReportTo,
		CRC:                  sub.CRC,
	}
}

// Send a payload from a registered source to a destination. A zero lifetime
// selects the Client's default.
func (c *Client) Send(ctx context.Context, source, destination bpv7.EndpointID, payload []byte, lifetime time.Duration) (SubmissionResult, error) {
	return c.SendBundle(ctx, Submission{
		Source:      source,
		Destination: destination,
		Payload:     payload,
		Lifetime:    lifetime,
	})
}

// SendBundle submits a Bundle with all options.
func (c *Client) SendBundle(ctx context.Context, sub Submission) (res SubmissionResult, err error) {
	if sub.Source.IsZero() {
		err = fmt.Errorf("%w: missing source", ErrNotRegistered)
		return
	}

	id, err := c.session.Submit(ctx, sub.args(c.defaultLifetime))
	if err != nil {
		return
	}

	res = SubmissionResult{
		BundleID:    id,
		Source:      sub.Source,
		Destination: sub.Destination,
		Size:        len(sub.Payload),
		Submitted:   time.Now(),
	}
	return
}
