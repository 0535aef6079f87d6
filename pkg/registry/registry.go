// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package registry tracks the EndpointIDs registered on one session and
// queues the Bundles delivered to them until an application receives them.
package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

var (
	// ErrAlreadyRegistered is returned by Add for an active registration.
	ErrAlreadyRegistered = errors.New("endpoint is already registered")

	// ErrNotRegistered is returned for EndpointIDs without a registration,
	// also to receivers blocked while their registration was removed.
	ErrNotRegistered = errors.New("endpoint is not registered")

	// ErrClosed is returned by all operations after Close.
	ErrClosed = errors.New("registry is closed")
)

// Delivery is a Bundle received for a registered EndpointID.
type Delivery struct {
	wire.DeliveryNotification

	// Sequence numbers all deliveries of a Registry in order of arrival.
	Sequence uint64

	// Received is the local time of arrival.
	Received time.Time
}

// Registration is a snapshot of an active registration.
type Registration struct {
	EndpointID bpv7.EndpointID
	Registered time.Time
	Pending    int
}

type endpoint struct {
	registered time.Time
	queue      []Delivery

	// wake is closed and replaced whenever the queue grows or the
	// registration ends.
	wake chan struct{}
}

func (ep *endpoint) notify() {
	close(ep.wake)
	ep.wake = make(chan struct{})
}

// Registry of one session. All methods are safe for concurrent use.
type Registry struct {
	mutex     sync.Mutex
	endpoints map[bpv7.EndpointID]*endpoint
	sequence  uint64
	closed    bool
	closeChan chan struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		endpoints: make(map[bpv7.EndpointID]*endpoint),
		closeChan: make(chan struct{}),
	}
}

// Add a registration.
func (r *Registry) Add(eid bpv7.EndpointID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, ok := r.endpoints[eid]; ok {
		return ErrAlreadyRegistered
	}

	r.endpoints[eid] = &endpoint{
		registered: time.Now(),
		wake:       make(chan struct{}),
	}
	return nil
}

// Remove a registration. Queued deliveries are discarded and blocked
// receivers return ErrNotRegistered.
func (r *Registry) Remove(eid bpv7.EndpointID) (discarded int, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	ep, ok := r.endpoints[eid]
	if !ok {
		return 0, ErrNotRegistered
	}

	delete(r.endpoints, eid)
	discarded = len(ep.queue)
	ep.queue = nil
	ep.notify()

	return discarded, nil
}

// Enqueue a delivery for its DestinationID. Deliveries for unknown
// EndpointIDs are rejected with ErrNotRegistered and must be handled by the
// caller.
func (r *Registry) Enqueue(dn wire.DeliveryNotification) (Delivery, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return Delivery{}, ErrClosed
	}

	ep, ok := r.endpoints[dn.DestinationID]
	if !ok {
		return Delivery{}, ErrNotRegistered
	}

	r.sequence++
	d := Delivery{
		DeliveryNotification: dn,
		Sequence:             r.sequence,
		Received:             time.Now(),
	}

	ep.queue = append(ep.queue, d)
	ep.notify()

	return d, nil
}

// Dequeue the oldest delivery for an EndpointID.
//
// A non-blocking Dequeue returns ok = false for an empty queue. A blocking
// Dequeue waits until a delivery arrives, the context is done, the
// registration is removed or the Registry is closed.
func (r *Registry) Dequeue(ctx context.Context, eid bpv7.EndpointID, blocking bool) (d Delivery, ok bool, err error) {
	for {
		r.mutex.Lock()

		if r.closed {
			r.mutex.Unlock()
			return Delivery{}, false, ErrClosed
		}

		ep, exists := r.endpoints[eid]
		if !exists {
			r.mutex.Unlock()
			return Delivery{}, false, ErrNotRegistered
		}

		if len(ep.queue) > 0 {
			d = ep.queue[0]
			ep.queue[0] = Delivery{}
			ep.queue = ep.queue[1:]
			r.mutex.Unlock()
			return d, true, nil
		}

		if !blocking {
			r.mutex.Unlock()
			return Delivery{}, false, nil
		}

		wake := ep.wake
		r.mutex.Unlock()

		select {
		case <-wake:
			// Either a new delivery, a removed registration or a closed
			// Registry; all are checked in the next iteration.

		case <-r.closeChan:
			return Delivery{}, false, ErrClosed

		case <-ctx.Done():
			return Delivery{}, false, ctx.Err()
		}
	}
}

// Lookup an active registration.
func (r *Registry) Lookup(eid bpv7.EndpointID) (reg Registration, ok bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ep, ok := r.endpoints[eid]
	if !ok {
		return Registration{}, false
	}
	return Registration{EndpointID: eid, Registered: ep.registered, Pending: len(ep.queue)}, true
}

// Pending returns the queue length of an EndpointID, zero for unknown ones.
func (r *Registry) Pending(eid bpv7.EndpointID) int {
	reg, _ := r.Lookup(eid)
	return reg.Pending
}

// Registrations returns a snapshot of all active registrations.
func (r *Registry) Registrations() []Registration {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	regs := make([]Registration, 0, len(r.endpoints))
	for eid, ep := range r.endpoints {
		regs = append(regs, Registration{EndpointID: eid, Registered: ep.registered, Pending: len(ep.queue)})
	}
	return regs
}

// Close the Registry, waking all blocked receivers with ErrClosed. The
// number of discarded deliveries is returned. Further calls are no-ops.
func (r *Registry) Close() (discarded int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return 0
	}

	r.closed = true
	close(r.closeChan)

	for eid, ep := range r.endpoints {
		discarded += len(ep.queue)
		ep.queue = nil
		delete(r.endpoints, eid)
	}
	return
}
