// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package client is the application-facing API to a dtnd's UNIX agent.
//
// A Client registers EndpointIDs, sends Bundles and receives the Bundles
// delivered to its EndpointIDs over one session:
//
//	c, err := client.Connect(ctx, "/var/run/dtnd.sock", client.Options{})
//	if err != nil {
//		// errors.Is(err, client.ErrConnect)
//	}
//	defer c.Close()
//
//	src := bpv7.MustNewEndpointID("dtn://node1/app1")
//	_ = c.Register(ctx, src)
//	res, err := c.Send(ctx, src, bpv7.MustNewEndpointID("dtn://node2/app1"), []byte("hello"), 0)
package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/metrics"
	"github.com/dtn7/dtnclient-go/pkg/registry"
	"github.com/dtn7/dtnclient-go/pkg/session"
	"github.com/dtn7/dtnclient-go/pkg/storage"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

// DefaultLifetime of sent Bundles, as used by dtnd's tools.
const DefaultLifetime = 24 * time.Hour

// Delivery is a Bundle received for a registered EndpointID.
type Delivery = registry.Delivery

// BundleContent is a Bundle fetched from a mailbox.
type BundleContent = wire.BundleContent

// Options for Connect. The zero value connects with defaults.
type Options struct {
	// Logger defaults to logrus' standard logger.
	Logger log.FieldLogger

	// Registerer for this Client's metrics. Nil disables metrics.
	Registerer prometheus.Registerer

	DialTimeout    time.Duration
	WaitForSocket  time.Duration
	RequestTimeout time.Duration
	MaxFrameSize   uint64

	// InitialEndpoint is registered by Connect, if set.
	InitialEndpoint bpv7.EndpointID

	// DefaultLifetime is used by Send for a zero lifetime.
	DefaultLifetime time.Duration

	// ArchiveDir enables an archive of all received deliveries.
	ArchiveDir string

	// ArchiveRetention after a Bundle's creation, storage.DefaultRetention if zero.
	ArchiveRetention time.Duration
}

// Client of a dtnd's UNIX agent.
type Client struct {
	session *session.Session
	archive *storage.Store
	logger  log.FieldLogger

	defaultLifetime time.Duration

	closeOnce sync.Once
	closeErr  error
}

// Connect to the agent socket at socketPath.
func Connect(ctx context.Context, socketPath string, opts Options) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	if opts.DefaultLifetime <= 0 {
		opts.DefaultLifetime = DefaultLifetime
	}

	var m *metrics.Metrics
	if opts.Registerer != nil {
		var err error
		if m, err = metrics.New(opts.Registerer); err != nil {
			return nil, fmt.Errorf("registering metrics failed: %w", err)
		}
	}

	var archive *storage.Store
	if opts.ArchiveDir != "" {
		var err error
		if archive, err = storage.NewStore(opts.ArchiveDir, opts.ArchiveRetention); err != nil {
			return nil, fmt.Errorf("opening archive failed: %w", err)
		}
	}

	s, err := session.Open(ctx, socketPath, session.Options{
		MaxFrameSize:    opts.MaxFrameSize,
		DialTimeout:     opts.DialTimeout,
		WaitForSocket:   opts.WaitForSocket,
		RequestTimeout:  opts.RequestTimeout,
		InitialEndpoint: opts.InitialEndpoint,
		Logger:          opts.Logger,
		Metrics:         m,
	})
	if err != nil {
		if archive != nil {
			_ = archive.Close()
		}
		return nil, err
	}

	return &Client{
		session:         s,
		archive:         archive,
		logger:          opts.Logger,
		defaultLifetime: opts.DefaultLifetime,
	}, nil
}

// Register an EndpointID for this Client.
func (c *Client) Register(ctx context.Context, eid bpv7.EndpointID) error {
	return c.session.Register(ctx, eid)
}

// Deregister an EndpointID. Queued deliveries are discarded.
func (c *Client) Deregister(ctx context.Context, eid bpv7.EndpointID) error {
	return c.session.Deregister(ctx, eid)
}

// IsRegistered reports an active registration.
func (c *Client) IsRegistered(eid bpv7.EndpointID) bool {
	return c.session.IsRegistered(eid)
}

// Registrations returns a snapshot of all active registrations.
func (c *Client) Registrations() []registry.Registration {
	return c.session.Registrations()
}

// Receive the oldest delivery for a registered EndpointID, waiting up to
// timeout. A zero timeout waits until ctx is done.
func (c *Client) Receive(ctx context.Context, eid bpv7.EndpointID, timeout time.Duration) (Delivery, error) {
	d, err := c.session.Receive(ctx, eid, timeout)
	if err != nil {
		return d, err
	}

	c.archiveDelivery(d)
	return d, nil
}

// TryReceive returns a queued delivery without blocking. The second return
// value is false if there is none.
func (c *Client) TryReceive(eid bpv7.EndpointID) (Delivery, bool, error) {
	d, ok, err := c.session.TryReceive(eid)
	if ok {
		c.archiveDelivery(d)
	}
	return d, ok, err
}

func (c *Client) archiveDelivery(d Delivery) {
	if c.archive == nil {
		return
	}

	if err := c.archive.Push(d); err != nil {
		c.logger.WithError(err).WithField("bundle", d.BundleID).Warn("Archiving delivery failed")
	}
}

// List the IDs of Bundles the daemon stores for a mailbox.
func (c *Client) List(ctx context.Context, mailbox bpv7.EndpointID, newOnly bool) ([]string, error) {
	return c.session.List(ctx, mailbox, newOnly)
}

// Fetch one stored Bundle of a mailbox.
func (c *Client) Fetch(ctx context.Context, mailbox bpv7.EndpointID, bundleID string, remove bool) (wire.BundleContent, error) {
	return c.session.Fetch(ctx, mailbox, bundleID, remove)
}

// FetchAll stored Bundles of a mailbox.
func (c *Client) FetchAll(ctx context.Context, mailbox bpv7.EndpointID, newOnly, remove bool) ([]wire.BundleContent, error) {
	return c.session.FetchAll(ctx, mailbox, newOnly, remove)
}

// Archive returns the delivery archive, nil unless Options.ArchiveDir was set.
func (c *Client) Archive() *storage.Store {
	return c.archive
}

// State of the underlying session.
func (c *Client) State() session.State {
	return c.session.State()
}

// Events of the underlying session: state transitions and warnings.
func (c *Client) Events() <-chan session.Event {
	return c.session.Events()
}

// Close the Client and release the socket. Blocked callers return
// ErrSessionClosed. Close might be called multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs error
		if err := c.session.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing session: %w", err))
		}
		if c.archive != nil {
			if err := c.archive.Close(); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("closing archive: %w", err))
			}
		}
		c.closeErr = errs
	})
	return c.closeErr
}
