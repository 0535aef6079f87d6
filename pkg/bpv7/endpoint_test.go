// SPDX-FileCopyrightText: 2018, 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/dtn7/cboring"
)

func TestNewEndpointID(t *testing.T) {
	tests := []struct {
		uri        string
		normalised string
		valid      bool
	}{
		{"dtn:none", "dtn:none", true},
		{"dtn://foo/", "dtn://foo/", true},
		{"dtn://foo", "dtn://foo/", true},
		{"dtn://foo/bar", "dtn://foo/bar", true},
		{"dtn://foo/bar/buz", "dtn://foo/bar/buz", true},
		{"dtn://node1/app1", "dtn://node1/app1", true},
		{"dtn://a1-b2.c3_d4/", "dtn://a1-b2.c3_d4/", true},
		{"dtn://rec.all/~", "dtn://rec.all/~", true},
		{"dtn://none", "", false},
		{"dtn://none/", "", false},
		{"dtn://", "", false},
		{"dtn:///bar", "", false},
		{"dtn://f^oo/", "", false},
		{"dtn://foo/bär", "", false},
		{"dtn:foo", "", false},
		{"ipn:1.1", "ipn:1.1", true},
		{"ipn:23.42", "ipn:23.42", true},
		{"ipn:23.0", "ipn:23.0", true},
		{"ipn:01.02", "ipn:1.2", true},
		{"ipn:0.1", "", false},
		{"ipn://1.1", "", false},
		{"ipn:1.1.1", "", false},
		{"ipn:11", "", false},
		{"ipn:a.1", "", false},
		{"ipn:99999999999999999999.1", "", false},
		{"uff:uff", "", false},
		{"", "", false},
	}

	for _, test := range tests {
		t.Run(test.uri, func(t *testing.T) {
			eid, err := NewEndpointID(test.uri)
			if (err == nil) != test.valid {
				t.Fatalf("expected valid = %t, got err: %v", test.valid, err)
			}

			if err != nil {
				if !errors.Is(err, ErrInvalidEndpoint) {
					t.Fatalf("error %v does not wrap ErrInvalidEndpoint", err)
				}
				return
			}

			if s := eid.String(); s != test.normalised {
				t.Fatalf("expected %s, got %s", test.normalised, s)
			}
		})
	}
}

func TestEndpointNodeService(t *testing.T) {
	tests := []struct {
		eid     EndpointID
		node    string
		service string
		ok      bool
	}{
		{DtnNone(), "", "", false},
		{EndpointID{}, "", "", false},
		{MustNewEndpointID("dtn://node1/"), "node1", "", true},
		{MustNewEndpointID("dtn://node1/app1"), "node1", "app1", true},
		{MustNewEndpointID("dtn://node1/app1/sub"), "node1", "app1/sub", true},
		{MustNewEndpointID("ipn:23.42"), "23", "42", true},
	}

	for _, test := range tests {
		node, nodeOk := test.eid.Node()
		service, serviceOk := test.eid.Service()

		if nodeOk != test.ok || serviceOk != test.ok {
			t.Fatalf("%v: expected ok = %t, got (%t, %t)", test.eid, test.ok, nodeOk, serviceOk)
		}
		if node != test.node || service != test.service {
			t.Fatalf("%v: expected (%s, %s), got (%s, %s)", test.eid, test.node, test.service, node, service)
		}
	}
}

func TestNewDtnAndIpnEndpointID(t *testing.T) {
	if eid, err := NewDtnEndpointID("node1", "app1"); err != nil {
		t.Fatal(err)
	} else if eid != MustNewEndpointID("dtn://node1/app1") {
		t.Fatalf("unexpected EndpointID %v", eid)
	}

	if _, err := NewDtnEndpointID("", "app1"); err == nil {
		t.Fatal("empty node name was accepted")
	}

	if eid, err := NewIpnEndpointID(23, 0); err != nil {
		t.Fatal(err)
	} else if eid != MustNewEndpointID("ipn:23.0") {
		t.Fatalf("unexpected EndpointID %v", eid)
	}

	if _, err := NewIpnEndpointID(0, 1); err == nil {
		t.Fatal("node number 0 was accepted")
	}
}

func TestEndpointCheckValid(t *testing.T) {
	tests := []struct {
		ep    EndpointID
		valid bool
	}{
		{EndpointID{nil}, false},
		{EndpointID{&DtnEndpoint{IsDtnNone: true}}, true},
		{EndpointID{DtnEndpoint{IsDtnNone: true, NodeName: "foo"}}, false},
		{EndpointID{DtnEndpoint{NodeName: "foo"}}, true},
		{EndpointID{DtnEndpoint{NodeName: ""}}, false},
		{EndpointID{&IpnEndpoint{0, 0}}, false},
		{EndpointID{&IpnEndpoint{0, 1}}, false},
		{EndpointID{&IpnEndpoint{1, 0}}, true},
		{EndpointID{&IpnEndpoint{1, 1}}, true},
	}

	for _, test := range tests {
		if err := test.ep.CheckValid(); (err == nil) != test.valid {
			t.Fatalf("Endpoint ID %v resulted in error: %v", test.ep, err)
		}
	}
}

func TestEndpointCbor(t *testing.T) {
	tests := []struct {
		eid  string
		cbor []byte
	}{
		{"dtn:none", []byte{0x82, 0x01, 0x00}},
		{"dtn://foo/", []byte{0x82, 0x01, 0x66, 0x2F, 0x2F, 0x66, 0x6F, 0x6F, 0x2F}},
		{"dtn://foo/bar", []byte{0x82, 0x01, 0x69, 0x2F, 0x2F, 0x66, 0x6F, 0x6F, 0x2F, 0x62, 0x61, 0x72}},
		{"ipn:1.1", []byte{0x82, 0x02, 0x82, 0x01, 0x01}},
		{"ipn:23.42", []byte{0x82, 0x02, 0x82, 0x17, 0x18, 0x2A}},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("marshal-%s", test.eid), func(t *testing.T) {
			e, err := NewEndpointID(test.eid)
			if err != nil {
				t.Fatal(err)
			}

			buff := new(bytes.Buffer)
			if err := cboring.Marshal(&e, buff); err != nil {
				t.Fatalf("Marshaling %s failed: %v", test.eid, err)
			}

			if data := buff.Bytes(); !reflect.DeepEqual(data, test.cbor) {
				t.Fatalf("CBOR differs: %x != %x", data, test.cbor)
			}
		})

		t.Run(fmt.Sprintf("unmarshal-%s", test.eid), func(t *testing.T) {
			e := EndpointID{}

			buff := bytes.NewBuffer(test.cbor)
			if err := cboring.Unmarshal(&e, buff); err != nil {
				t.Fatalf("Unmarshaling %s failed: %v", test.eid, err)
			}

			if e.String() != test.eid {
				t.Fatalf("EID differs: %s != %s", e.String(), test.eid)
			}
			if e != MustNewEndpointID(test.eid) {
				t.Fatalf("EID %v is not comparable to its parsed version", e)
			}
		})
	}
}

func TestEndpointCborInvalid(t *testing.T) {
	tests := [][]byte{
		{0x81, 0x01},                   // array of one element
		{0x82, 0x03, 0x00},             // unknown scheme
		{0x82, 0x01, 0x01},             // dtn with uint other than zero
		{0x82, 0x02, 0x82, 0x00, 0x01}, // ipn node zero
	}

	for _, test := range tests {
		var e EndpointID
		if err := cboring.Unmarshal(&e, bytes.NewBuffer(test)); err == nil {
			t.Fatalf("%x was unmarshalled to %v", test, e)
		}
	}
}

func TestEndpointUri(t *testing.T) {
	tests := []struct {
		eid       string
		authority string
		path      string
	}{
		{"dtn:none", "none", "/"},
		{"dtn://foobar/", "foobar", "/"},
		{"dtn://foo/bar", "foo", "/bar"},
		{"dtn://foo/bar/", "foo", "/bar/"},
		{"ipn:1.1", "1", "1"},
		{"ipn:23.42", "23", "42"},
	}

	for _, test := range tests {
		ep, err := NewEndpointID(test.eid)
		if err != nil {
			t.Fatal(err)
		}

		if authority := ep.Authority(); test.authority != authority {
			t.Fatalf("Authority: expected %s, got %s", test.authority, authority)
		}
		if path := ep.Path(); test.path != path {
			t.Fatalf("Path: expected %s, got %s", test.path, path)
		}
	}
}

func TestEndpointSingleton(t *testing.T) {
	tests := []struct {
		eid       EndpointID
		singleton bool
	}{
		{DtnNone(), false},
		{MustNewEndpointID("dtn://foobar/"), true},
		{MustNewEndpointID("dtn://foo/bar"), true},
		{MustNewEndpointID("dtn://foobar/~"), false},
		{MustNewEndpointID("dtn://foo/~bar/"), false},
		{MustNewEndpointID("ipn:23.42"), true},
		{BroadcastEndpoint, false},
		{ClientMulticastEndpoint, false},
	}

	for _, test := range tests {
		if singleton := test.eid.IsSingleton(); test.singleton != singleton {
			t.Fatalf("%s: expected singleton %t, got %t", test.eid, test.singleton, singleton)
		}
	}
}

func TestEndpointIDSameNode(t *testing.T) {
	tests := []struct {
		eid1     EndpointID
		eid2     EndpointID
		sameNode bool
		equals   bool
	}{
		{MustNewEndpointID("dtn://foo/"), MustNewEndpointID("dtn://foo/"), true, true},
		{MustNewEndpointID("dtn://foo/"), EndpointID{DtnEndpoint{NodeName: "foo"}}, true, true},
		{MustNewEndpointID("ipn:23.42"), EndpointID{IpnEndpoint{Node: 23, Service: 42}}, true, true},
		{MustNewEndpointID("dtn://foo/"), MustNewEndpointID("dtn://foo/bar"), true, false},
		{MustNewEndpointID("dtn://foo/bar"), MustNewEndpointID("dtn://bar/foo"), false, false},
		{MustNewEndpointID("ipn:23.42"), MustNewEndpointID("dtn://23/42"), false, false},
		{EndpointID{}, EndpointID{}, true, true},
		{EndpointID{}, DtnNone(), true, false},
		{DtnNone(), DtnNone(), true, true},
		{MustNewEndpointID("ipn:23.42"), EndpointID{}, false, false},
	}

	for _, test := range tests {
		if res := test.eid1.SameNode(test.eid2); res != test.sameNode {
			t.Fatalf("%v.SameNode(%v) := %t", test.eid1, test.eid2, res)
		}
		if res := test.eid2.SameNode(test.eid1); res != test.sameNode {
			t.Fatalf("%v.SameNode(%v) := %t", test.eid2, test.eid1, res)
		}
		if res := test.eid1 == test.eid2; res != test.equals {
			t.Fatalf("(%v == %v) := %t", test.eid1, test.eid2, res)
		}
		if res := test.eid1.Equal(test.eid2); res != test.equals {
			t.Fatalf("%v.Equal(%v) := %t", test.eid1, test.eid2, res)
		}
	}
}

func TestEndpointIDMapKey(t *testing.T) {
	m := map[EndpointID]int{
		MustNewEndpointID("dtn://foo/bar"): 1,
		MustNewEndpointID("ipn:1.2"):       2,
	}

	if v := m[MustNewEndpointID("dtn://foo/bar")]; v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}
	if v := m[MustNewEndpointID("ipn:01.2")]; v != 2 {
		t.Fatalf("expected 2, got %d", v)
	}
}
