// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
)

// Message is implemented by all agent messages.
type Message interface {
	// Kind selects the wire code in a Protocol's table.
	Kind() Kind

	// CorrelationToken is the request's token or the token of the request a
	// response belongs to. It might be empty for unsolicited messages.
	CorrelationToken() string

	// Validate returns an error wrapping ErrInvalidMessage for messages which
	// must neither be sent nor accepted.
	Validate() error
}

// Reply is a Message completing a pending request.
type Reply interface {
	Message

	// Failure is the daemon's error message, empty on success.
	Failure() string
}

// NewToken creates a fresh correlation token.
func NewToken() string {
	return uuid.NewString()
}

func checkEndpoint(field string, eid bpv7.EndpointID) error {
	if eid.IsZero() {
		return fmt.Errorf("%w: %s is empty", ErrInvalidMessage, field)
	} else if err := eid.CheckValid(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidMessage, field, err)
	}
	return nil
}

// Response is the daemon's generic answer to a request.
type Response struct {
	Token string `msgpack:"Token"`
	Error string `msgpack:"Error"`
}

func (Response) Kind() Kind                 { return KindResponse }
func (m Response) CorrelationToken() string { return m.Token }
func (m Response) Failure() string          { return m.Error }
func (Response) Validate() error            { return nil }

// RegisterRequest asks the daemon to deliver Bundles for an EndpointID to this session.
type RegisterRequest struct {
	Token      string          `msgpack:"Token"`
	EndpointID bpv7.EndpointID `msgpack:"EndpointID"`
}

func (RegisterRequest) Kind() Kind                 { return KindRegisterRequest }
func (m RegisterRequest) CorrelationToken() string { return m.Token }
func (m RegisterRequest) Validate() error          { return checkEndpoint("EndpointID", m.EndpointID) }

// RegisterResponse answers a RegisterRequest.
type RegisterResponse struct {
	Token      string          `msgpack:"Token"`
	EndpointID bpv7.EndpointID `msgpack:"EndpointID"`
	Error      string          `msgpack:"Error"`
}

func (RegisterResponse) Kind() Kind                 { return KindRegisterResponse }
func (m RegisterResponse) CorrelationToken() string { return m.Token }
func (m RegisterResponse) Failure() string          { return m.Error }
func (m RegisterResponse) Validate() error {
	if m.Error != "" {
		return nil
	}
	return checkEndpoint("EndpointID", m.EndpointID)
}

// DeregisterRequest removes a registration.
type DeregisterRequest struct {
	Token      string          `msgpack:"Token"`
	EndpointID bpv7.EndpointID `msgpack:"EndpointID"`
}

func (DeregisterRequest) Kind() Kind                 { return KindDeregisterRequest }
func (m DeregisterRequest) CorrelationToken() string { return m.Token }
func (m DeregisterRequest) Validate() error          { return checkEndpoint("EndpointID", m.EndpointID) }

// DeregisterResponse answers a DeregisterRequest.
type DeregisterResponse struct {
	Token      string          `msgpack:"Token"`
	EndpointID bpv7.EndpointID `msgpack:"EndpointID"`
	Error      string          `msgpack:"Error"`
}

func (DeregisterResponse) Kind() Kind                 { return KindDeregisterResponse }
func (m DeregisterResponse) CorrelationToken() string { return m.Token }
func (m DeregisterResponse) Failure() string          { return m.Error }
func (m DeregisterResponse) Validate() error {
	if m.Error != "" {
		return nil
	}
	return checkEndpoint("EndpointID", m.EndpointID)
}

// SubmitRequest asks the daemon to create and dispatch a Bundle.
type SubmitRequest struct {
	Token string     `msgpack:"Token"`
	Args  BundleArgs `msgpack:"Args"`
}

func (SubmitRequest) Kind() Kind                 { return KindSubmitRequest }
func (m SubmitRequest) CorrelationToken() string { return m.Token }
func (m SubmitRequest) Validate() error          { return m.Args.Validate() }

// SubmitResponse carries the new Bundle's ID or the daemon's refusal.
type SubmitResponse struct {
	Token    string `msgpack:"Token"`
	BundleID string `msgpack:"BundleID"`
	Error    string `msgpack:"Error"`
}

func (SubmitResponse) Kind() Kind                 { return KindSubmitResponse }
func (m SubmitResponse) CorrelationToken() string { return m.Token }
func (m SubmitResponse) Failure() string          { return m.Error }

func (m SubmitResponse) Validate() error {
	if m.Error == "" && m.BundleID == "" {
		return fmt.Errorf("%w: successful SubmitResponse without BundleID", ErrInvalidMessage)
	}
	return nil
}

// ListRequest queries the IDs of Bundles stored for a mailbox.
type ListRequest struct {
	Token   string          `msgpack:"Token"`
	Mailbox bpv7.EndpointID `msgpack:"Mailbox"`
	New     bool            `msgpack:"New"`
}

func (ListRequest) Kind() Kind                 { return KindListRequest }
func (m ListRequest) CorrelationToken() string { return m.Token }
func (m ListRequest) Validate() error          { return checkEndpoint("Mailbox", m.Mailbox) }

// ListResponse answers a ListRequest.
type ListResponse struct {
	Token   string   `msgpack:"Token"`
	Bundles []string `msgpack:"Bundles"`
	Error   string   `msgpack:"Error"`
}

func (ListResponse) Kind() Kind                 { return KindListResponse }
func (m ListResponse) CorrelationToken() string { return m.Token }
func (m ListResponse) Failure() string          { return m.Error }
func (ListResponse) Validate() error            { return nil }

// FetchRequest retrieves one stored Bundle of a mailbox.
type FetchRequest struct {
	Token    string          `msgpack:"Token"`
	Mailbox  bpv7.EndpointID `msgpack:"Mailbox"`
	BundleID string          `msgpack:"BundleID"`
	Remove   bool            `msgpack:"Remove"`
}

func (FetchRequest) Kind() Kind                 { return KindFetchRequest }
func (m FetchRequest) CorrelationToken() string { return m.Token }

func (m FetchRequest) Validate() error {
	if err := checkEndpoint("Mailbox", m.Mailbox); err != nil {
		return err
	} else if m.BundleID == "" {
		return fmt.Errorf("%w: BundleID is empty", ErrInvalidMessage)
	}
	return nil
}

// FetchResponse answers a FetchRequest.
type FetchResponse struct {
	Token         string        `msgpack:"Token"`
	BundleContent BundleContent `msgpack:"BundleContent"`
	Error         string        `msgpack:"Error"`
}

func (FetchResponse) Kind() Kind                 { return KindFetchResponse }
func (m FetchResponse) CorrelationToken() string { return m.Token }
func (m FetchResponse) Failure() string          { return m.Error }

func (m FetchResponse) Validate() error {
	if m.Error != "" {
		return nil
	}
	return m.BundleContent.Validate()
}

// FetchAllRequest retrieves all, or only new, stored Bundles of a mailbox.
type FetchAllRequest struct {
	Token   string          `msgpack:"Token"`
	Mailbox bpv7.EndpointID `msgpack:"Mailbox"`
	New     bool            `msgpack:"New"`
	Remove  bool            `msgpack:"Remove"`
}

func (FetchAllRequest) Kind() Kind                 { return KindFetchAllRequest }
func (m FetchAllRequest) CorrelationToken() string { return m.Token }
func (m FetchAllRequest) Validate() error          { return checkEndpoint("Mailbox", m.Mailbox) }

// FetchAllResponse answers a FetchAllRequest.
type FetchAllResponse struct {
	Token   string          `msgpack:"Token"`
	Bundles []BundleContent `msgpack:"Bundles"`
	Error   string          `msgpack:"Error"`
}

func (FetchAllResponse) Kind() Kind                 { return KindFetchAllResponse }
func (m FetchAllResponse) CorrelationToken() string { return m.Token }
func (m FetchAllResponse) Failure() string          { return m.Error }

func (m FetchAllResponse) Validate() error {
	for i, bc := range m.Bundles {
		if err := bc.Validate(); err != nil {
			return fmt.Errorf("bundle %d: %w", i, err)
		}
	}
	return nil
}

// DeliveryNotification is pushed by the daemon for a Bundle addressed to a
// registered EndpointID. It might arrive at any time, even between a request
// and its response.
type DeliveryNotification struct {
	Token             string                 `msgpack:"Token"`
	BundleID          string                 `msgpack:"BundleID"`
	SourceID          bpv7.EndpointID        `msgpack:"SourceID"`
	DestinationID     bpv7.EndpointID        `msgpack:"DestinationID"`
	CreationTimestamp bpv7.CreationTimestamp `msgpack:"CreationTimestamp"`
	Payload           []byte                 `msgpack:"Payload"`

	IsFragment      bool   `msgpack:"IsFragment"`
	FragmentOffset  uint64 `msgpack:"FragmentOffset"`
	TotalDataLength uint64 `msgpack:"TotalDataLength"`
}

func (DeliveryNotification) Kind() Kind                 { return KindDeliveryNotification }
func (m DeliveryNotification) CorrelationToken() string { return m.Token }

func (m DeliveryNotification) Validate() error {
	if err := m.Content().Validate(); err != nil {
		return err
	}

	if m.IsFragment && m.FragmentOffset+uint64(len(m.Payload)) > m.TotalDataLength {
		return fmt.Errorf("%w: fragment at offset %d with %d bytes exceeds total length %d",
			ErrInvalidMessage, m.FragmentOffset, len(m.Payload), m.TotalDataLength)
	}
	return nil
}

// Content of this delivery, as returned by the mailbox operations.
func (m DeliveryNotification) Content() BundleContent {
	return BundleContent{
		BundleID:      m.BundleID,
		SourceID:      m.SourceID,
		DestinationID: m.DestinationID,
		Payload:       m.Payload,
	}
}

// ErrorFrame reports a daemon-side problem. A fatal ErrorFrame precedes the
// daemon closing the connection.
type ErrorFrame struct {
	Token   string `msgpack:"Token"`
	Message string `msgpack:"Message"`
	Fatal   bool   `msgpack:"Fatal"`
}

func (ErrorFrame) Kind() Kind                 { return KindErrorFrame }
func (m ErrorFrame) CorrelationToken() string { return m.Token }

func (m ErrorFrame) Validate() error {
	if m.Message == "" {
		return fmt.Errorf("%w: ErrorFrame without message", ErrInvalidMessage)
	}
	return nil
}
