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

	"github.com/dtn7/dtnclient-go/pkg/transport"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

// expectedReplies maps a request to its specific response. The daemon's
// generic Response is accepted for every request.
var expectedReplies = map[wire.Kind]wire.Kind{
	wire.KindRegisterRequest:   wire.KindRegisterResponse,
	wire.KindDeregisterRequest: wire.KindDeregisterResponse,
	wire.KindSubmitRequest:     wire.KindSubmitResponse,
	wire.KindListRequest:       wire.KindListResponse,
	wire.KindFetchRequest:      wire.KindFetchResponse,
	wire.KindFetchAllRequest:   wire.KindFetchAllResponse,
}

// request sends m and waits for its reply. The reply might carry a failure,
// which is left to the caller.
func (s *Session) request(ctx context.Context, m wire.Message) (reply wire.Reply, err error) {
	if err = s.usable(); err != nil {
		return
	}

	data, err := s.protocol.Encode(m)
	if err != nil {
		return
	}

	pr := &pendingRequest{
		token:   m.CorrelationToken(),
		kind:    m.Kind(),
		reply:   make(chan result, 1),
		started: time.Now(),
	}
	if err = s.addPending(pr); err != nil {
		return
	}

	logger := s.logger.WithFields(log.Fields{
		"kind":  pr.kind,
		"token": pr.token,
	})

	outcome := "ok"
	defer func() {
		s.metrics.RequestFinished(pr.kind.String(), outcome, pr.started)
		if err != nil {
			logger.WithError(err).WithField("outcome", outcome).Debug("Request failed")
		}
	}()

	if writeErr := s.conn.WriteFrame(data); writeErr != nil {
		s.removePending(pr.token)
		outcome = "error"

		switch {
		case errors.Is(writeErr, transport.ErrConnectionClosed):
			s.terminate(fmt.Errorf("writing frame: %w", writeErr), Closed)
			err = fmt.Errorf("%w: %w", ErrSessionClosed, writeErr)
		case errors.Is(writeErr, transport.ErrTimeout):
			err = fmt.Errorf("%w: %w", ErrTimeout, writeErr)
		default:
			err = writeErr
		}
		return
	}
	s.metrics.FrameOut()
	logger.Debug("Sent request")

	timer := time.NewTimer(s.opts.RequestTimeout)
	defer timer.Stop()

	var res result
	select {
	case res = <-pr.reply:

	case <-timer.C:
		if _, ok := s.removePending(pr.token); ok {
			outcome = "timeout"
			err = fmt.Errorf("%w: no response to %v within %v", ErrTimeout, pr.kind, s.opts.RequestTimeout)
			return
		}
		res = <-pr.reply

	case <-ctx.Done():
		if _, ok := s.removePending(pr.token); ok {
			outcome = "cancelled"
			err = ctx.Err()
			if errors.Is(err, context.DeadlineExceeded) {
				outcome = "timeout"
				err = fmt.Errorf("%w: %w", ErrTimeout, err)
			}
			return
		}
		res = <-pr.reply
	}

	if res.err != nil {
		outcome = "error"
		err = res.err
		return
	}

	reply, ok := res.msg.(wire.Reply)
	if !ok || (reply.Kind() != wire.KindResponse && reply.Kind() != expectedReplies[pr.kind]) {
		outcome = "error"
		err = fmt.Errorf("%w: %w: %v answered by %v", ErrProtocol, ErrUnexpectedResponse, pr.kind, res.msg.Kind())
		return nil, err
	}

	if reply.Failure() != "" {
		outcome = "refused"
	}
	return reply, nil
}
