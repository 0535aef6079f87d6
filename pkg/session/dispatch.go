// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package session

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtnclient-go/pkg/registry"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

// receiveLoop is the only reader of the transport. It ends with the
// connection, terminating the Session.
func (s *Session) receiveLoop() {
	defer close(s.loopAck)

	for {
		frame, err := s.conn.ReadFrame()
		if err != nil {
			if !s.conn.Closed() {
				s.logger.WithError(err).Warn("Reading from agent socket failed")
			}
			s.terminate(fmt.Errorf("reading frame: %w", err), Closed)
			return
		}
		s.metrics.FrameIn()

		m, err := s.protocol.Decode(frame)
		if err != nil {
			reason := "malformed"
			var de *wire.DecodeError
			if errors.As(err, &de) {
				reason = de.Reason.String()
			}

			s.metrics.ProtocolError(reason)
			s.warn(fmt.Errorf("%w: %w", ErrProtocol, err))
			continue
		}

		s.dispatch(m)
	}
}

func (s *Session) dispatch(m wire.Message) {
	s.logger.WithFields(log.Fields{
		"kind":  m.Kind(),
		"token": m.CorrelationToken(),
	}).Debug("Received message")

	switch msg := m.(type) {
	case wire.DeliveryNotification:
		s.deliver(msg)

	case wire.ErrorFrame:
		err := fmt.Errorf("%w: daemon reported: %s", ErrProtocol, msg.Message)
		s.warn(err)

		if msg.Token != "" {
			s.complete(msg.Token, result{err: &DaemonError{Op: "request", Message: msg.Message, Err: ErrProtocol}})
		}
		if msg.Fatal {
			s.terminate(err, Closed)
		}

	default:
		if !s.protocol.IsResponse(m.Kind()) {
			s.metrics.ProtocolError("unexpected kind")
			s.warn(fmt.Errorf("%w: daemon sent a %v", ErrProtocol, m.Kind()))
			return
		}

		token := m.CorrelationToken()
		if token == "" {
			token = s.oldestPending()
		}

		if !s.complete(token, result{msg: m}) {
			s.metrics.ProtocolError("unexpected response")
			s.warn(fmt.Errorf("%w: %v with token %q", ErrUnexpectedResponse, m.Kind(), m.CorrelationToken()))
		}
	}
}

func (s *Session) deliver(dn wire.DeliveryNotification) {
	logger := s.logger.WithFields(log.Fields{
		"bundle":      dn.BundleID,
		"source":      dn.SourceID,
		"destination": dn.DestinationID,
	})

	d, err := s.registry.Enqueue(dn)
	switch {
	case err == nil:
		s.metrics.Delivery("queued", 1)
		logger.WithField("sequence", d.Sequence).Debug("Queued delivery")

	case errors.Is(err, registry.ErrNotRegistered):
		s.metrics.Delivery("orphaned", 1)
		s.warn(fmt.Errorf("%w: delivery %s for %v", ErrNotRegistered, dn.BundleID, dn.DestinationID))

	default:
		logger.WithError(err).Debug("Dropped delivery of a closing session")
	}
}

// addPending fails for a terminated Session.
func (s *Session) addPending(pr *pendingRequest) error {
	s.pendingMutex.Lock()
	defer s.pendingMutex.Unlock()

	if s.pending == nil {
		return ErrSessionClosed
	}
	if _, dup := s.pending[pr.token]; dup {
		return fmt.Errorf("duplicate correlation token %q", pr.token)
	}

	s.pending[pr.token] = pr
	s.pendingOrder = append(s.pendingOrder, pr.token)
	s.metrics.RequestStarted()
	return nil
}

// removePending returns false if the request was already completed.
func (s *Session) removePending(token string) (*pendingRequest, bool) {
	s.pendingMutex.Lock()
	defer s.pendingMutex.Unlock()

	pr, ok := s.pending[token]
	if !ok {
		return nil, false
	}

	delete(s.pending, token)
	for i, t := range s.pendingOrder {
		if t == token {
			s.pendingOrder = append(s.pendingOrder[:i], s.pendingOrder[i+1:]...)
			break
		}
	}
	return pr, true
}

// oldestPending is used for responses without a token, as sent by daemons
// answering strictly in order.
func (s *Session) oldestPending() string {
	s.pendingMutex.Lock()
	defer s.pendingMutex.Unlock()

	if len(s.pendingOrder) == 0 {
		return ""
	}
	return s.pendingOrder[0]
}

// complete hands a result to the pending request with this token.
func (s *Session) complete(token string, res result) bool {
	pr, ok := s.removePending(token)
	if !ok {
		return false
	}

	pr.reply <- res
	return true
}
