// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/dtn7/cboring"
)

const (
	dtnEndpointSchemeName string = "dtn"
	dtnEndpointSchemeNo   uint64 = 1
	dtnEndpointDtnNoneSsp string = "none"
	dtnEndpointPrefix     string = dtnEndpointSchemeName + "://"
)

// dtnNodeNameRegexp is based on RFC 3986's reg-name / unreserved rules, as
// referred by RFC 9171, section 4.2.5.1.1.
var dtnNodeNameRegexp = regexp.MustCompile(`^[A-Za-z0-9\-._~!$&'()*+,;=]+$`)

// DtnEndpoint describes the dtn URI for EndpointIDs, as defined in RFC 9171.
//
//	Format of a "normal" dtn URI:  "dtn:" "//" NodeName "/" Demux
//	Format of the null endpoint:   "dtn:none"
type DtnEndpoint struct {
	NodeName  string
	Demux     string
	IsDtnNone bool
}

// NewDtnEndpoint from an URI with the dtn scheme.
//
// A missing trailing slash after the node name is added, "dtn://foo" results
// in "dtn://foo/".
func NewDtnEndpoint(uri string) (e EndpointType, err error) {
	if uri == dtnEndpointSchemeName+":"+dtnEndpointDtnNoneSsp {
		return DtnEndpoint{IsDtnNone: true}, nil
	}

	if !strings.HasPrefix(uri, dtnEndpointPrefix) {
		err = fmt.Errorf("%w: %q does not match a dtn endpoint", ErrInvalidEndpoint, uri)
		return
	}

	ssp := uri[len(dtnEndpointPrefix):]
	switch ssp {
	case dtnEndpointDtnNoneSsp:
		err = fmt.Errorf("%w: use 'dtn:none', not 'dtn://none'", ErrInvalidEndpoint)
		return
	case "":
		err = fmt.Errorf("%w: dtn endpoint is missing a node name", ErrInvalidEndpoint)
		return
	}

	nodeName, demux, _ := strings.Cut(ssp, "/")

	de := DtnEndpoint{NodeName: nodeName, Demux: demux}
	if err = de.CheckValid(); err != nil {
		return
	}

	e = de
	return
}

// NewDtnEndpointID creates a dtn EndpointID from a node name and an optional,
// possibly empty, service demux.
func NewDtnEndpointID(nodeName, demux string) (EndpointID, error) {
	de := DtnEndpoint{NodeName: nodeName, Demux: demux}
	if err := de.CheckValid(); err != nil {
		return EndpointID{}, err
	}
	return EndpointID{EndpointType: de}, nil
}

// SchemeName is "dtn" for DtnEndpoints.
func (DtnEndpoint) SchemeName() string {
	return dtnEndpointSchemeName
}

// SchemeNo is 1 for DtnEndpoints.
func (DtnEndpoint) SchemeNo() uint64 {
	return dtnEndpointSchemeNo
}

// Authority is the authority part of the Endpoint URI, e.g., "foo" for "dtn://foo/bar".
func (e DtnEndpoint) Authority() string {
	if e.IsDtnNone {
		return dtnEndpointDtnNoneSsp
	}
	return e.NodeName
}

// Path is the path part of the Endpoint URI, e.g., "/bar" for "dtn://foo/bar".
func (e DtnEndpoint) Path() string {
	if e.IsDtnNone {
		return "/"
	}
	return "/" + e.Demux
}

// IsSingleton checks if this Endpoint represents a singleton.
//
// Non-singleton endpoints start their demux with a tilde, e.g., "dtn://foo/~bar".
// The null endpoint is not a singleton.
func (e DtnEndpoint) IsSingleton() bool {
	if e.IsDtnNone {
		return false
	}
	return !strings.HasPrefix(e.Demux, "~")
}

// CheckValid returns an error for incorrect data.
func (e DtnEndpoint) CheckValid() error {
	if e.IsDtnNone {
		if e.NodeName != "" || e.Demux != "" {
			return fmt.Errorf("%w: dtn:none must neither have a node name nor a demux", ErrInvalidEndpoint)
		}
		return nil
	}

	if e.NodeName == dtnEndpointDtnNoneSsp && e.Demux == "" {
		return fmt.Errorf("%w: use 'dtn:none', not 'dtn://none'", ErrInvalidEndpoint)
	}
	if !dtnNodeNameRegexp.MatchString(e.NodeName) {
		return fmt.Errorf("%w: invalid dtn node name %q", ErrInvalidEndpoint, e.NodeName)
	}
	for _, r := range e.Demux {
		if r > unicode.MaxASCII {
			return fmt.Errorf("%w: invalid dtn demux %q", ErrInvalidEndpoint, e.Demux)
		}
	}

	return nil
}

func (e DtnEndpoint) ssp() string {
	if e.IsDtnNone {
		return dtnEndpointDtnNoneSsp
	}
	return "//" + e.NodeName + "/" + e.Demux
}

func (e DtnEndpoint) String() string {
	return dtnEndpointSchemeName + ":" + e.ssp()
}

// MarshalCbor writes this DtnEndpoint's CBOR representation.
func (e DtnEndpoint) MarshalCbor(w io.Writer) error {
	if e.IsDtnNone {
		return cboring.WriteUInt(0, w)
	}
	return cboring.WriteTextString(e.ssp(), w)
}

// UnmarshalCbor reads a CBOR representation.
func (e *DtnEndpoint) UnmarshalCbor(r io.Reader) error {
	m, n, err := cboring.ReadMajors(r)
	if err != nil {
		return err
	}

	switch m {
	case cboring.UInt:
		if n != 0 {
			return fmt.Errorf("DtnEndpoint: unexpected unsigned integer %d", n)
		}
		*e = DtnEndpoint{IsDtnNone: true}
		return nil

	case cboring.TextString:
		tmp, err := cboring.ReadRawBytes(n, r)
		if err != nil {
			return err
		}

		et, err := NewDtnEndpoint(dtnEndpointSchemeName + ":" + string(tmp))
		if err != nil {
			return err
		}
		*e = et.(DtnEndpoint)
		return nil

	default:
		return fmt.Errorf("DtnEndpoint: wrong major type 0x%X for unmarshalling", m)
	}
}

// DtnNone returns the null endpoint "dtn:none".
func DtnNone() EndpointID {
	return EndpointID{EndpointType: DtnEndpoint{IsDtnNone: true}}
}

// Well-known non-singleton endpoints, used for group communication between
// applications.
var (
	BroadcastEndpoint          = MustNewEndpointID("dtn://rec.all/~")
	BrokerMulticastEndpoint    = MustNewEndpointID("dtn://rec.broker/~")
	DatastoreMulticastEndpoint = MustNewEndpointID("dtn://rec.store/~")
	ExecutorMulticastEndpoint  = MustNewEndpointID("dtn://rec.executor/~")
	ClientMulticastEndpoint    = MustNewEndpointID("dtn://rec.client/~")
)
