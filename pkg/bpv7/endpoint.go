// SPDX-FileCopyrightText: 2018, 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"
	"io"
	"strings"

	"github.com/dtn7/cboring"
)

// EndpointType describes a discrete EndpointID scheme.
//
// Both DtnEndpoint and IpnEndpoint implement this interface. Their values are
// comparable, which makes an EndpointID usable with == and as a map key.
type EndpointType interface {
	// SchemeName must return the URI scheme name, e.g., "dtn".
	SchemeName() string

	// SchemeNo must return the IANA scheme number, e.g., 1 for "dtn".
	SchemeNo() uint64

	// Authority is the authority part of the Endpoint URI, e.g., "foo" for "dtn://foo/bar".
	Authority() string

	// Path is the path part of the Endpoint URI, e.g., "/bar" for "dtn://foo/bar".
	Path() string

	// IsSingleton checks if this Endpoint represents a singleton.
	IsSingleton() bool

	// CheckValid returns an error for incorrect data.
	CheckValid() error

	// MarshalCbor writes the scheme-specific part's CBOR representation.
	MarshalCbor(w io.Writer) error

	fmt.Stringer
}

// EndpointID represents an Endpoint ID as defined in RFC 9171, section 4.2.5.1.
type EndpointID struct {
	EndpointType EndpointType
}

// NewEndpointID based on an URI, e.g., "dtn://node1/app1" or "ipn:23.42".
//
// The returned EndpointID is normalised: "dtn://foo" becomes "dtn://foo/" and
// "ipn:01.02" becomes "ipn:1.2".
func NewEndpointID(uri string) (e EndpointID, err error) {
	var et EndpointType

	switch {
	case strings.HasPrefix(uri, dtnEndpointSchemeName+":"):
		et, err = NewDtnEndpoint(uri)
	case strings.HasPrefix(uri, ipnEndpointSchemeName+":"):
		et, err = NewIpnEndpoint(uri)
	default:
		err = fmt.Errorf("%w: unknown scheme in %q (expected 'dtn:' or 'ipn:')", ErrInvalidEndpoint, uri)
	}

	if err == nil {
		e = EndpointID{EndpointType: et}
	}
	return
}

// MustNewEndpointID based on an URI, but panics on an error. This function is
// intended for constants and tests.
func MustNewEndpointID(uri string) EndpointID {
	if e, err := NewEndpointID(uri); err != nil {
		panic(err)
	} else {
		return e
	}
}

// SchemeName returns the URI scheme name or an empty string for the zero EndpointID.
func (eid EndpointID) SchemeName() string {
	if eid.EndpointType == nil {
		return ""
	}
	return eid.EndpointType.SchemeName()
}

// Authority is the authority part of the Endpoint URI, e.g., "foo" for "dtn://foo/bar".
func (eid EndpointID) Authority() string {
	if eid.EndpointType == nil {
		return ""
	}
	return eid.EndpointType.Authority()
}

// Path is the path part of the Endpoint URI, e.g., "/bar" for "dtn://foo/bar".
func (eid EndpointID) Path() string {
	if eid.EndpointType == nil {
		return ""
	}
	return eid.EndpointType.Path()
}

// Node returns the node part of this EndpointID, "node1" for "dtn://node1/app1"
// or "23" for "ipn:23.42". The second return value is false for dtn:none and
// the zero EndpointID.
func (eid EndpointID) Node() (string, bool) {
	if eid.EndpointType == nil || eid.IsDtnNone() {
		return "", false
	}
	return eid.EndpointType.Authority(), true
}

// Service returns the service part of this EndpointID, "app1" for
// "dtn://node1/app1" or "42" for "ipn:23.42". The second return value is false
// for dtn:none and the zero EndpointID.
func (eid EndpointID) Service() (string, bool) {
	if eid.EndpointType == nil || eid.IsDtnNone() {
		return "", false
	}

	switch et := eid.EndpointType.(type) {
	case DtnEndpoint:
		return et.Demux, true
	case *DtnEndpoint:
		return et.Demux, true
	default:
		return et.Path(), true
	}
}

// IsDtnNone checks if this EndpointID is the null endpoint "dtn:none".
func (eid EndpointID) IsDtnNone() bool {
	switch et := eid.EndpointType.(type) {
	case DtnEndpoint:
		return et.IsDtnNone
	case *DtnEndpoint:
		return et.IsDtnNone
	default:
		return false
	}
}

// IsZero checks if this EndpointID was never set.
func (eid EndpointID) IsZero() bool {
	return eid.EndpointType == nil
}

// IsSingleton checks if this EndpointID represents a singleton.
func (eid EndpointID) IsSingleton() bool {
	if eid.EndpointType == nil {
		return false
	}
	return eid.EndpointType.IsSingleton()
}

// SameNode checks if two EndpointIDs share the same node. Unset EndpointIDs
// are treated like dtn:none.
func (eid EndpointID) SameNode(other EndpointID) bool {
	if eid.EndpointType == nil || other.EndpointType == nil || eid.IsDtnNone() || other.IsDtnNone() {
		return (eid.EndpointType == nil || eid.IsDtnNone()) == (other.EndpointType == nil || other.IsDtnNone())
	}

	return eid.EndpointType.SchemeNo() == other.EndpointType.SchemeNo() &&
		eid.EndpointType.Authority() == other.EndpointType.Authority()
}

// Equal compares two EndpointIDs by their normalised URI. Unlike ==, this
// also works for EndpointTypes stored as pointers.
func (eid EndpointID) Equal(other EndpointID) bool {
	if eid.EndpointType == nil || other.EndpointType == nil {
		return eid.EndpointType == nil && other.EndpointType == nil
	}
	return eid.String() == other.String()
}

// CheckValid returns an error for incorrect data.
func (eid EndpointID) CheckValid() error {
	if eid.EndpointType == nil {
		return fmt.Errorf("%w: EndpointType is nil", ErrInvalidEndpoint)
	}
	return eid.EndpointType.CheckValid()
}

// MarshalCbor writes this EndpointID's CBOR representation, an array of its
// scheme number and the scheme-specific part.
func (eid *EndpointID) MarshalCbor(w io.Writer) error {
	if eid.EndpointType == nil {
		return fmt.Errorf("%w: cannot marshal an unset EndpointID", ErrInvalidEndpoint)
	}

	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}
	if err := cboring.WriteUInt(eid.EndpointType.SchemeNo(), w); err != nil {
		return err
	}
	return eid.EndpointType.MarshalCbor(w)
}

// UnmarshalCbor reads an EndpointID's CBOR representation.
func (eid *EndpointID) UnmarshalCbor(r io.Reader) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 2 {
		return fmt.Errorf("EndpointID: expected array of two elements, got %d", n)
	}

	schemeNo, err := cboring.ReadUInt(r)
	if err != nil {
		return err
	}

	switch schemeNo {
	case dtnEndpointSchemeNo:
		var de DtnEndpoint
		if err := de.UnmarshalCbor(r); err != nil {
			return err
		}
		eid.EndpointType = de

	case ipnEndpointSchemeNo:
		var ie IpnEndpoint
		if err := ie.UnmarshalCbor(r); err != nil {
			return err
		}
		eid.EndpointType = ie

	default:
		return fmt.Errorf("%w: unknown scheme number %d", ErrInvalidEndpoint, schemeNo)
	}

	return eid.CheckValid()
}

func (eid EndpointID) String() string {
	if eid.EndpointType == nil {
		return ""
	}
	return eid.EndpointType.String()
}
