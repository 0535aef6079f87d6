// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dtn7/cboring"
)

const (
	ipnEndpointSchemeName string = "ipn"
	ipnEndpointSchemeNo   uint64 = 2
)

// IpnEndpoint describes the ipn URI for EndpointIDs, as defined in RFC 9171,
// section 4.2.5.1.2. A service number of zero addresses the administrative
// endpoint of a node.
type IpnEndpoint struct {
	Node    uint64
	Service uint64
}

// NewIpnEndpoint from an URI with the ipn scheme, e.g., "ipn:23.42".
func NewIpnEndpoint(uri string) (e EndpointType, err error) {
	rest, ok := strings.CutPrefix(uri, ipnEndpointSchemeName+":")
	if !ok {
		err = fmt.Errorf("%w: %q does not match an ipn endpoint", ErrInvalidEndpoint, uri)
		return
	}
	if strings.HasPrefix(rest, "//") {
		err = fmt.Errorf("%w: must be 'ipn:N.S', not 'ipn://N.S'", ErrInvalidEndpoint)
		return
	}

	parts := strings.Split(rest, ".")
	if len(parts) != 2 {
		err = fmt.Errorf("%w: ipn endpoint needs exactly one dot (node.service)", ErrInvalidEndpoint)
		return
	}

	var node, service uint64
	if node, err = strconv.ParseUint(parts[0], 10, 64); err != nil {
		err = fmt.Errorf("%w: invalid ipn node number: %v", ErrInvalidEndpoint, err)
		return
	}
	if service, err = strconv.ParseUint(parts[1], 10, 64); err != nil {
		err = fmt.Errorf("%w: invalid ipn service number: %v", ErrInvalidEndpoint, err)
		return
	}

	ie := IpnEndpoint{Node: node, Service: service}
	if err = ie.CheckValid(); err != nil {
		return
	}

	e = ie
	return
}

// NewIpnEndpointID creates an ipn EndpointID from its node and service number.
func NewIpnEndpointID(node, service uint64) (EndpointID, error) {
	ie := IpnEndpoint{Node: node, Service: service}
	if err := ie.CheckValid(); err != nil {
		return EndpointID{}, err
	}
	return EndpointID{EndpointType: ie}, nil
}

// SchemeName is "ipn" for IpnEndpoints.
func (IpnEndpoint) SchemeName() string {
	return ipnEndpointSchemeName
}

// SchemeNo is 2 for IpnEndpoints.
func (IpnEndpoint) SchemeNo() uint64 {
	return ipnEndpointSchemeNo
}

// Authority is the authority part of the Endpoint URI, e.g., "23" for "ipn:23.42".
func (e IpnEndpoint) Authority() string {
	return strconv.FormatUint(e.Node, 10)
}

// Path is the path part of the Endpoint URI, e.g., "42" for "ipn:23.42".
func (e IpnEndpoint) Path() string {
	return strconv.FormatUint(e.Service, 10)
}

// IsSingleton checks if this Endpoint represents a singleton.
//
// All IPN Endpoints are singletons by definition.
func (IpnEndpoint) IsSingleton() bool {
	return true
}

// CheckValid returns an error for incorrect data.
func (e IpnEndpoint) CheckValid() error {
	if e.Node < 1 {
		return fmt.Errorf("%w: ipn node number must be >= 1", ErrInvalidEndpoint)
	}
	return nil
}

func (e IpnEndpoint) String() string {
	return fmt.Sprintf("%s:%d.%d", ipnEndpointSchemeName, e.Node, e.Service)
}

// MarshalCbor writes this IpnEndpoint's CBOR representation.
func (e IpnEndpoint) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	for _, n := range []uint64{e.Node, e.Service} {
		if err := cboring.WriteUInt(n, w); err != nil {
			return err
		}
	}

	return nil
}

// UnmarshalCbor reads a CBOR representation for an IpnEndpoint.
func (e *IpnEndpoint) UnmarshalCbor(r io.Reader) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 2 {
		return fmt.Errorf("ipn uri expected array of 2 elements, not %d", n)
	}

	for _, n := range []*uint64{&e.Node, &e.Service} {
		if i, err := cboring.ReadUInt(r); err != nil {
			return err
		} else {
			*n = i
		}
	}

	return nil
}
