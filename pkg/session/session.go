// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session implements the client side of a dtnd UNIX agent session.
//
// A Session owns one transport.Conn and one registry.Registry. A single
// receive goroutine reads all frames and dispatches them: responses complete
// the pending request with the same correlation token, deliveries are queued
// in the Registry and warnings are published as Events.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/metrics"
	"github.com/dtn7/dtnclient-go/pkg/registry"
	"github.com/dtn7/dtnclient-go/pkg/transport"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

const (
	// DefaultRequestTimeout bounds a request's round trip if Options.RequestTimeout is unset.
	DefaultRequestTimeout = 30 * time.Second

	defaultEventBuffer = 64
)

// Options for Open.
type Options struct {
	// MaxFrameSize, DialTimeout and WaitForSocket are passed to the transport.
	MaxFrameSize  uint64
	DialTimeout   time.Duration
	WaitForSocket time.Duration

	// RequestTimeout bounds each request's round trip.
	RequestTimeout time.Duration

	// InitialEndpoint is registered while opening, if set.
	InitialEndpoint bpv7.EndpointID

	// Logger defaults to logrus' standard logger.
	Logger log.FieldLogger

	// Metrics might be nil.
	Metrics *metrics.Metrics

	// EventBuffer is the capacity of the Events channel. Events are dropped
	// if the buffer is full.
	EventBuffer int
}

type result struct {
	msg wire.Message
	err error
}

type pendingRequest struct {
	token   string
	kind    wire.Kind
	reply   chan result
	started time.Time
}

// Session with a dtnd's UNIX agent.
type Session struct {
	opts     Options
	logger   log.FieldLogger
	metrics  *metrics.Metrics
	protocol *wire.Protocol

	conn     *transport.Conn
	registry *registry.Registry

	stateMutex   sync.RWMutex
	state        State
	events       chan Event
	eventsClosed bool

	pendingMutex sync.Mutex
	pending      map[string]*pendingRequest
	pendingOrder []string

	closeOnce sync.Once
	closeErr  error
	loopAck   chan struct{}
}

// Open a Session to the socket at socketPath. If Options.InitialEndpoint is
// set, it is registered before Open returns.
func Open(ctx context.Context, socketPath string, opts Options) (*Session, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}

	s := &Session{
		opts:     opts,
		logger:   opts.Logger.WithField("socket", socketPath),
		metrics:  opts.Metrics,
		protocol: wire.V1,
		registry: registry.New(),
		state:    Disconnected,
		events:   make(chan Event, opts.EventBuffer),
		pending:  make(map[string]*pendingRequest),
		loopAck:  make(chan struct{}),
	}

	s.setState(Connecting)

	conn, err := transport.Dial(ctx, socketPath, transport.Options{
		MaxFrameSize:  opts.MaxFrameSize,
		DialTimeout:   opts.DialTimeout,
		WaitForSocket: opts.WaitForSocket,
		Logger:        s.logger,
	})
	if err != nil {
		s.setState(Disconnected)
		s.closeEvents()
		return nil, err
	}

	s.conn = conn
	s.metrics.SessionOpened()
	go s.receiveLoop()

	if eid := opts.InitialEndpoint; !eid.IsZero() {
		s.setState(Registering)

		if err := s.Register(ctx, eid); err != nil {
			s.terminate(err, Disconnected)
			<-s.loopAck
			return nil, fmt.Errorf("%w: %v: %w", ErrRegistrationFailed, eid, err)
		}
	}

	if !s.setState(Ready) {
		_ = s.Close()
		return nil, fmt.Errorf("%w: closed while connecting", ErrSessionClosed)
	}

	s.logger.Info("Session is ready")
	return s, nil
}

// State of this Session.
func (s *Session) State() State {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()

	return s.state
}

// Events publishes state transitions and warnings. The channel is closed
// after the Session reached its final state.
func (s *Session) Events() <-chan Event {
	return s.events
}

// setState performs a transition. Closed is final and Closing only allows
// the final states.
func (s *Session) setState(st State) bool {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	switch {
	case s.state == st:
		return true
	case s.state == Closed:
		return false
	case s.state == Closing && st != Closed && st != Disconnected:
		return false
	}

	s.logger.WithFields(log.Fields{
		"from": s.state,
		"to":   st,
	}).Debug("Session changed state")

	s.state = st
	s.emitLocked(Event{Time: time.Now(), State: st})
	return true
}

// emitLocked requires the stateMutex to be held.
func (s *Session) emitLocked(e Event) {
	if s.eventsClosed {
		return
	}

	select {
	case s.events <- e:
	default:
		s.logger.WithField("event", e).Debug("Dropped event, buffer is full")
	}
}

func (s *Session) closeEvents() {
	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()

	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
}

// warn logs a warning and publishes it as an Event.
func (s *Session) warn(err error) {
	s.logger.WithError(err).Warn("Session warning")

	s.stateMutex.Lock()
	defer s.stateMutex.Unlock()
	s.emitLocked(Event{Time: time.Now(), State: s.state, Warning: err})
}

// usable returns ErrSessionClosed unless requests might be sent.
func (s *Session) usable() error {
	switch st := s.State(); st {
	case Registering, Ready:
		return nil
	default:
		return fmt.Errorf("%w: session is %v", ErrSessionClosed, st)
	}
}

// terminate the Session once: the transport is closed, all pending requests
// and blocked receivers fail with ErrSessionClosed.
func (s *Session) terminate(cause error, final State) {
	s.closeOnce.Do(func() {
		if final != Disconnected {
			s.setState(Closing)
		}

		if cause != nil {
			s.logger.WithError(cause).Info("Session terminates")
		} else {
			s.logger.Info("Closing session")
		}

		s.closeErr = s.conn.Close()

		s.pendingMutex.Lock()
		pending := s.pending
		s.pending = nil
		s.pendingOrder = nil
		s.pendingMutex.Unlock()

		closedErr := ErrSessionClosed
		if cause != nil {
			closedErr = fmt.Errorf("%w: %w", ErrSessionClosed, cause)
		}
		for _, pr := range pending {
			pr.reply <- result{err: closedErr}
		}

		s.metrics.Delivery("discarded", s.registry.Close())
		s.metrics.SessionClosed()

		s.setState(final)
		s.closeEvents()
	})
}

// Close the Session. Blocked callers are woken with ErrSessionClosed. Close
// might be called multiple times.
func (s *Session) Close() error {
	s.terminate(nil, Closed)
	<-s.loopAck
	return s.closeErr
}
