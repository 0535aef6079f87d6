// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/registry"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

// registryError maps a closed Registry to ErrSessionClosed.
func registryError(err error) error {
	if errors.Is(err, registry.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrSessionClosed, err)
	}
	return err
}

// Register an EndpointID on this Session. Bundles addressed to it are queued
// until received.
func (s *Session) Register(ctx context.Context, eid bpv7.EndpointID) error {
	if err := eid.CheckValid(); err != nil {
		return err
	}
	if err := s.usable(); err != nil {
		return err
	}

	// Reserving the EndpointID first rejects concurrent duplicates locally.
	if err := s.registry.Add(eid); err != nil {
		return registryError(err)
	}

	reply, err := s.request(ctx, wire.RegisterRequest{Token: wire.NewToken(), EndpointID: eid})
	if err == nil && reply.Failure() != "" {
		err = &DaemonError{Op: "register", Message: reply.Failure(), Err: ErrRegistrationFailed}
	}
	if err != nil {
		_, _ = s.registry.Remove(eid)
		return err
	}

	s.logger.WithField("endpoint", eid).Info("Registered endpoint")
	return nil
}

// Deregister an EndpointID. Queued deliveries are discarded and callers
// blocked in Receive for it return ErrNotRegistered.
func (s *Session) Deregister(ctx context.Context, eid bpv7.EndpointID) error {
	if err := s.usable(); err != nil {
		return err
	}
	if _, ok := s.registry.Lookup(eid); !ok {
		return fmt.Errorf("%w: %v", ErrNotRegistered, eid)
	}

	reply, err := s.request(ctx, wire.DeregisterRequest{Token: wire.NewToken(), EndpointID: eid})
	if err != nil {
		return err
	} else if reply.Failure() != "" {
		return &DaemonError{Op: "deregister", Message: reply.Failure(), Err: ErrProtocol}
	}

	discarded, err := s.registry.Remove(eid)
	if err != nil {
		return registryError(err)
	}
	s.metrics.Delivery("discarded", discarded)

	s.logger.WithFields(log.Fields{
		"endpoint":  eid,
		"discarded": discarded,
	}).Info("Deregistered endpoint")
	return nil
}

// Submit a Bundle to be built and dispatched by the daemon. The source must
// be registered on this Session. The daemon's Bundle ID is returned, if the
// daemon reported one.
func (s *Session) Submit(ctx context.Context, args wire.BundleArgs) (bundleID string, err error) {
	if err = s.usable(); err != nil {
		return
	}
	if _, ok := s.registry.Lookup(args.Source); !ok {
		err = fmt.Errorf("%w: source %v", ErrNotRegistered, args.Source)
		return
	}

	reply, err := s.request(ctx, wire.SubmitRequest{Token: wire.NewToken(), Args: args})
	if err != nil {
		return
	} else if reply.Failure() != "" {
		err = &DaemonError{Op: "submit", Message: reply.Failure(), Err: ErrSubmitRejected}
		return
	}

	if sr, ok := reply.(wire.SubmitResponse); ok {
		bundleID = sr.BundleID
	}

	s.logger.WithFields(log.Fields{
		"source":      args.Source,
		"destination": args.Destination,
		"bundle":      bundleID,
		"size":        len(args.Payload),
	}).Info("Submitted bundle")
	return
}

// List the IDs of Bundles stored by the daemon for a mailbox.
func (s *Session) List(ctx context.Context, mailbox bpv7.EndpointID, newOnly bool) ([]string, error) {
	reply, err := s.request(ctx, wire.ListRequest{Token: wire.NewToken(), Mailbox: mailbox, New: newOnly})
	if err != nil {
		return nil, err
	} else if reply.Failure() != "" {
		return nil, &DaemonError{Op: "list", Message: reply.Failure(), Err: ErrProtocol}
	}

	if lr, ok := reply.(wire.ListResponse); ok {
		return lr.Bundles, nil
	}
	return nil, nil
}

// Fetch a stored Bundle from a mailbox, optionally removing it from the daemon.
func (s *Session) Fetch(ctx context.Context, mailbox bpv7.EndpointID, bundleID string, remove bool) (wire.BundleContent, error) {
	reply, err := s.request(ctx, wire.FetchRequest{
		Token:    wire.NewToken(),
		Mailbox:  mailbox,
		BundleID: bundleID,
		Remove:   remove,
	})
	if err != nil {
		return wire.BundleContent{}, err
	} else if reply.Failure() != "" {
		return wire.BundleContent{}, &DaemonError{Op: "fetch", Message: reply.Failure(), Err: ErrProtocol}
	}

	if fr, ok := reply.(wire.FetchResponse); ok {
		return fr.BundleContent, nil
	}
	return wire.BundleContent{}, fmt.Errorf("%w: fetch was answered without a bundle", ErrProtocol)
}

// FetchAll stored Bundles from a mailbox, optionally only new ones.
func (s *Session) FetchAll(ctx context.Context, mailbox bpv7.EndpointID, newOnly, remove bool) ([]wire.BundleContent, error) {
	reply, err := s.request(ctx, wire.FetchAllRequest{
		Token:   wire.NewToken(),
		Mailbox: mailbox,
		New:     newOnly,
		Remove:  remove,
	})
	if err != nil {
		return nil, err
	} else if reply.Failure() != "" {
		return nil, &DaemonError{Op: "fetch all", Message: reply.Failure(), Err: ErrProtocol}
	}

	if fr, ok := reply.(wire.FetchAllResponse); ok {
		return fr.Bundles, nil
	}
	return nil, nil
}

// Receive blocks until a delivery for a registered EndpointID is available.
// A positive timeout results in ErrTimeout.
func (s *Session) Receive(ctx context.Context, eid bpv7.EndpointID, timeout time.Duration) (registry.Delivery, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	d, _, err := s.registry.Dequeue(ctx, eid, true)
	switch {
	case err == nil:
		return d, nil
	case errors.Is(err, context.DeadlineExceeded):
		return registry.Delivery{}, fmt.Errorf("%w: no delivery for %v", ErrTimeout, eid)
	default:
		return registry.Delivery{}, registryError(err)
	}
}

// TryReceive returns a queued delivery without blocking. The second return
// value is false for an empty queue.
func (s *Session) TryReceive(eid bpv7.EndpointID) (registry.Delivery, bool, error) {
	d, ok, err := s.registry.Dequeue(context.Background(), eid, false)
	return d, ok, registryError(err)
}

// IsRegistered reports an active registration on this Session.
func (s *Session) IsRegistered(eid bpv7.EndpointID) bool {
	_, ok := s.registry.Lookup(eid)
	return ok
}

// Registrations returns a snapshot of all active registrations.
func (s *Session) Registrations() []registry.Registration {
	return s.registry.Registrations()
}

// Pending returns the number of queued deliveries for an EndpointID.
func (s *Session) Pending(eid bpv7.EndpointID) int {
	return s.registry.Pending(eid)
}
