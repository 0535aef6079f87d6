// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package daemontest provides an in-process dtnd UNIX agent for tests.
package daemontest

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtnclient-go/pkg/transport"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

// Handler answers a received request. Returning nil leaves the request unanswered.
type Handler func(req wire.Message) []wire.Message

// Daemon listens on a socket in a test's temporary directory.
type Daemon struct {
	// Path of the UNIX socket.
	Path string

	t        testing.TB
	listener net.Listener

	mutex     sync.Mutex
	handler   Handler
	conns     []*transport.Conn
	received  []wire.Message
	connected chan struct{}
	requests  chan wire.Message

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts a Daemon, which is closed at the test's end. A nil handler
// selects Accept.
func New(t testing.TB, handler Handler) *Daemon {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dtnd.sock")
	return NewAt(t, path, handler)
}

// NewAt starts a Daemon on a given socket path.
func NewAt(t testing.TB, path string, handler Handler) *Daemon {
	t.Helper()

	if handler == nil {
		handler = Accept
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}

	d := &Daemon{
		Path:      path,
		t:         t,
		listener:  l,
		handler:   handler,
		connected: make(chan struct{}),
		requests:  make(chan wire.Message, 1024),
	}

	d.wg.Add(1)
	go d.accept()

	t.Cleanup(d.Close)
	return d
}

// SetHandler replaces the Handler for all following requests.
func (d *Daemon) SetHandler(handler Handler) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.handler = handler
}

func (d *Daemon) accept() {
	defer d.wg.Done()

	for {
		c, err := d.listener.Accept()
		if err != nil {
			return
		}

		conn := transport.NewConn(c, transport.Options{Logger: log.WithField("side", "daemon")})

		d.mutex.Lock()
		d.conns = append(d.conns, conn)
		if len(d.conns) == 1 {
			close(d.connected)
		}
		d.mutex.Unlock()

		d.wg.Add(1)
		go d.serve(conn)
	}
}

func (d *Daemon) serve(conn *transport.Conn) {
	defer d.wg.Done()

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			return
		}

		m, err := wire.Decode(frame)
		if err != nil {
			d.t.Logf("daemon received an undecodable frame: %v", err)
			continue
		}

		d.mutex.Lock()
		d.received = append(d.received, m)
		handler := d.handler
		d.mutex.Unlock()

		select {
		case d.requests <- m:
		default:
		}

		for _, reply := range handler(m) {
			if err := d.send(conn, reply); err != nil {
				return
			}
		}
	}
}

func (d *Daemon) send(conn *transport.Conn, m wire.Message) error {
	data, err := wire.Encode(m)
	if err != nil {
		d.t.Errorf("daemon cannot encode %v: %v", m.Kind(), err)
		return err
	}
	return conn.WriteFrame(data)
}

// conn returns the latest client connection, waiting up to a second for one.
func (d *Daemon) conn() (*transport.Conn, error) {
	select {
	case <-d.connected:
	case <-time.After(time.Second):
		return nil, errors.New("no client connected")
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.conns[len(d.conns)-1], nil
}

// Push an unsolicited Message to the latest client.
func (d *Daemon) Push(m wire.Message) error {
	conn, err := d.conn()
	if err != nil {
		return err
	}
	return d.send(conn, m)
}

// PushFrame writes a raw frame body to the latest client.
func (d *Daemon) PushFrame(body []byte) error {
	conn, err := d.conn()
	if err != nil {
		return err
	}
	return conn.WriteFrame(body)
}

// Next waits for the next received request.
func (d *Daemon) Next(timeout time.Duration) (wire.Message, error) {
	select {
	case m := <-d.requests:
		return m, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no request within %v", timeout)
	}
}

// Received returns all requests in order of arrival.
func (d *Daemon) Received() []wire.Message {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	return append([]wire.Message(nil), d.received...)
}

// Disconnect closes all client connections, but keeps listening.
func (d *Daemon) Disconnect() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, conn := range d.conns {
		_ = conn.Close()
	}
}

// Close the listener and all connections.
func (d *Daemon) Close() {
	d.closeOnce.Do(func() {
		_ = d.listener.Close()
		d.Disconnect()
		d.wg.Wait()
	})
}

// Accept answers every request successfully, echoing its token.
func Accept(req wire.Message) []wire.Message {
	switch m := req.(type) {
	case wire.RegisterRequest:
		return []wire.Message{wire.RegisterResponse{Token: m.Token, EndpointID: m.EndpointID}}

	case wire.DeregisterRequest:
		return []wire.Message{wire.DeregisterResponse{Token: m.Token, EndpointID: m.EndpointID}}

	case wire.SubmitRequest:
		return []wire.Message{wire.SubmitResponse{Token: m.Token, BundleID: BundleID(m)}}

	case wire.ListRequest:
		return []wire.Message{wire.ListResponse{Token: m.Token, Bundles: []string{}}}

	case wire.FetchRequest:
		return []wire.Message{wire.FetchResponse{Token: m.Token, BundleContent: wire.BundleContent{
			BundleID:      m.BundleID,
			DestinationID: m.Mailbox,
		}}}

	case wire.FetchAllRequest:
		return []wire.Message{wire.FetchAllResponse{Token: m.Token}}

	default:
		return []wire.Message{wire.Response{Token: req.CorrelationToken()}}
	}
}

// Refuse answers every request with a failure.
func Refuse(reason string) Handler {
	return func(req wire.Message) []wire.Message {
		return []wire.Message{wire.Response{Token: req.CorrelationToken(), Error: reason}}
	}
}

// Silent never answers.
func Silent(wire.Message) []wire.Message {
	return nil
}

// BundleID is the ID Accept reports for a submission.
func BundleID(req wire.SubmitRequest) string {
	return fmt.Sprintf("%v-%s", req.Args.Source, req.Token)
}
