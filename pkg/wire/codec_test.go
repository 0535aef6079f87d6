// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
)

func allMessages() []Message {
	node1 := bpv7.MustNewEndpointID("dtn://node1/app1")
	node2 := bpv7.MustNewEndpointID("dtn://node2/app1")
	content := BundleContent{
		BundleID:      "dtn://node2/app1-694224000000-0",
		SourceID:      node2,
		DestinationID: node1,
		Payload:       []byte("hello world"),
	}

	return []Message{
		Response{Token: "t-1"},
		Response{Token: "t-2", Error: "nope"},
		RegisterRequest{Token: "t-3", EndpointID: node1},
		RegisterResponse{Token: "t-4", EndpointID: node1},
		RegisterResponse{Token: "t-5", EndpointID: node1, Error: "already registered"},
		DeregisterRequest{Token: "t-6", EndpointID: bpv7.MustNewEndpointID("ipn:23.42")},
		DeregisterResponse{Token: "t-7", EndpointID: bpv7.MustNewEndpointID("ipn:23.42")},
		SubmitRequest{Token: "t-8", Args: BundleArgs{
			Source:               node1,
			Destination:          node2,
			CreationTimestampNow: true,
			Lifetime:             "24h",
			Payload:              []byte{0x00, 0x01, 0x02, 0xFF},
		}},
		SubmitRequest{Token: "t-9", Args: BundleArgs{
			Source:               node1,
			Destination:          bpv7.ClientMulticastEndpoint,
			CreationTimestampNow: true,
			Lifetime:             "10m0s",
			Payload:              []byte("with all options"),
			ControlFlags:         bpv7.MustNotFragmented | bpv7.StatusRequestDelivery,
			HopLimit:             16,
			ReportTo:             node1,
			CRC:                  bpv7.CRC32,
		}},
		SubmitResponse{Token: "t-10", BundleID: "dtn://node1/app1-694224000000-0"},
		SubmitResponse{Token: "t-11", Error: "no route"},
		ListRequest{Token: "t-12", Mailbox: node1, New: true},
		ListResponse{Token: "t-13", Bundles: []string{"a", "b"}},
		ListResponse{Token: "t-14"},
		FetchRequest{Token: "t-15", Mailbox: node1, BundleID: "a", Remove: true},
		FetchResponse{Token: "t-16", BundleContent: content},
		FetchResponse{Token: "t-17", Error: "unknown bundle"},
		FetchAllRequest{Token: "t-18", Mailbox: node1, New: true, Remove: true},
		FetchAllResponse{Token: "t-19", Bundles: []BundleContent{content, content}},
		DeliveryNotification{
			BundleID:          content.BundleID,
			SourceID:          node2,
			DestinationID:     node1,
			CreationTimestamp: bpv7.NewCreationTimestamp(694224000000, 3),
			Payload:           []byte("pushed"),
		},
		DeliveryNotification{
			BundleID:          content.BundleID,
			SourceID:          node2,
			DestinationID:     node1,
			CreationTimestamp: bpv7.NewCreationTimestamp(694224000000, 4),
			Payload:           []byte("frag"),
			IsFragment:        true,
			FragmentOffset:    4,
			TotalDataLength:   12,
		},
		ErrorFrame{Token: "t-20", Message: "out of memory", Fatal: true},
		ErrorFrame{Message: "unsupported message"},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, m := range allMessages() {
		t.Run(m.Kind().String(), func(t *testing.T) {
			data, err := Encode(m)
			if err != nil {
				t.Fatal(err)
			}

			if m2, err := Decode(data); err != nil {
				t.Fatal(err)
			} else if !reflect.DeepEqual(m, m2) {
				t.Fatalf("expected %#v, got %#v", m, m2)
			}
		})
	}
}

func TestEncodeFields(t *testing.T) {
	for _, m := range allMessages() {
		data, err := Encode(m)
		if err != nil {
			t.Fatal(err)
		}

		var fields map[string]interface{}
		if err := msgpack.Unmarshal(data, &fields); err != nil {
			t.Fatal(err)
		}

		code, _ := V1.Code(m.Kind())
		if typ, err := msgpack.Marshal(fields["Type"]); err != nil {
			t.Fatal(err)
		} else {
			var got uint64
			if err := msgpack.Unmarshal(typ, &got); err != nil || got != code {
				t.Fatalf("%v: expected Type %d, got %v (%v)", m.Kind(), code, fields["Type"], err)
			}
		}

		if token, ok := fields["Token"].(string); !ok || token != m.CorrelationToken() {
			t.Fatalf("%v: expected Token %q, got %v", m.Kind(), m.CorrelationToken(), fields["Token"])
		}
	}
}

func TestEncodeSubmitArgs(t *testing.T) {
	m := SubmitRequest{Token: "t", Args: BundleArgs{
		Source:               bpv7.MustNewEndpointID("dtn://node1/app1"),
		Destination:          bpv7.MustNewEndpointID("dtn://node2/app1"),
		CreationTimestampNow: true,
		Lifetime:             "24h",
		Payload:              []byte("0123456789"),
	}}

	data, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}

	var fields struct {
		Args map[string]interface{} `msgpack:"Args"`
	}
	if err := msgpack.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}

	if dst := fields.Args["destination"]; dst != "dtn://node2/app1" {
		t.Fatalf("unexpected destination %v", dst)
	}
	if payload, ok := fields.Args["payload_block"].([]byte); !ok || string(payload) != "0123456789" {
		t.Fatalf("unexpected payload %v", fields.Args["payload_block"])
	}
	for _, key := range []string{"bundle_ctrl_flags", "hop_count_block", "crc"} {
		if _, ok := fields.Args[key]; ok {
			t.Fatalf("unset option %s was encoded", key)
		}
	}
}

func TestEncodeInvalid(t *testing.T) {
	tests := []Message{
		nil,
		RegisterRequest{Token: "t"},
		SubmitRequest{Token: "t", Args: BundleArgs{Source: bpv7.MustNewEndpointID("dtn://a/")}},
		SubmitResponse{Token: "t"},
		ErrorFrame{},
	}

	for _, m := range tests {
		if data, err := Encode(m); err == nil {
			t.Fatalf("%#v was encoded to %x", m, data)
		}
	}
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()

	data, err := msgpack.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestDecodeErrors(t *testing.T) {
	valid := mustMarshal(t, map[string]interface{}{"Type": 1, "Token": "t", "Error": ""})

	tests := []struct {
		name   string
		data   []byte
		reason Reason
	}{
		{"empty", nil, ReasonMalformed},
		{"truncated", valid[:len(valid)-2], ReasonMalformed},
		{"array", mustMarshal(t, []int{1, 2}), ReasonNotMap},
		{"string", mustMarshal(t, "Type"), ReasonNotMap},
		{"missing-type", mustMarshal(t, map[string]interface{}{"Token": "t"}), ReasonMissingType},
		{"string-type", mustMarshal(t, map[string]interface{}{"Type": "2"}), ReasonFieldType},
		{"unknown-tag", mustMarshal(t, map[string]interface{}{"Type": 99}), ReasonUnknownTag},
		{"trailing-bytes", append(append([]byte{}, valid...), 0xC0), ReasonTrailingBytes},
		{"field-type", mustMarshal(t, map[string]interface{}{"Type": 4, "Args": "nope"}), ReasonFieldType},
		{"empty-eid", mustMarshal(t, map[string]interface{}{"Type": 2, "EndpointID": ""}), ReasonInvalid},
		{"no-bundle-id", mustMarshal(t, map[string]interface{}{"Type": 5}), ReasonInvalid},
		{"no-message", mustMarshal(t, map[string]interface{}{"Type": 15, "Fatal": true}), ReasonInvalid},
		{"fragment-overflow", mustMarshal(t, map[string]interface{}{
			"Type": 14, "BundleID": "b", "DestinationID": "dtn://a/",
			"Payload": []byte("12345"), "IsFragment": true, "FragmentOffset": 0, "TotalDataLength": 4,
		}), ReasonInvalid},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m, err := Decode(test.data)
			if err == nil {
				t.Fatalf("decoded %#v", m)
			}

			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T: %v", err, err)
			}
			if de.Reason != test.reason {
				t.Fatalf("expected reason %v, got %v (%v)", test.reason, de.Reason, err)
			}
		})
	}
}

func TestDecodeInvalidEndpoint(t *testing.T) {
	data := mustMarshal(t, map[string]interface{}{"Type": 2, "Token": "t", "EndpointID": "uff:uff"})

	var de *DecodeError
	if _, err := Decode(data); !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	} else if de.Reason != ReasonInvalid && de.Reason != ReasonFieldType {
		t.Fatalf("unexpected reason %v", de.Reason)
	} else if de.Code != 2 {
		t.Fatalf("expected code 2, got %d", de.Code)
	}
}

func TestDecodeUnknownKeys(t *testing.T) {
	data := mustMarshal(t, map[string]interface{}{
		"Type":       2,
		"Token":      "t",
		"EndpointID": "dtn://node1/app1",
		"Flavour":    "strawberry",
		"Extra":      []int{1, 2, 3},
	})

	m, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}

	expected := RegisterRequest{Token: "t", EndpointID: bpv7.MustNewEndpointID("dtn://node1/app1")}
	if m != Message(expected) {
		t.Fatalf("expected %v, got %v", expected, m)
	}
}

func TestDecodeWithoutToken(t *testing.T) {
	// dtnd answers with its generic Response without any token.
	data := mustMarshal(t, map[string]interface{}{"Type": 1, "Error": ""})

	if m, err := Decode(data); err != nil {
		t.Fatal(err)
	} else if r, ok := m.(Response); !ok || r != (Response{}) {
		t.Fatalf("unexpected message %#v", m)
	}
}

func TestProtocolTable(t *testing.T) {
	codes := make(map[uint64]Kind)
	for k := KindResponse; k <= KindErrorFrame; k++ {
		code, ok := V1.Code(k)
		if !ok {
			t.Fatalf("%v has no code", k)
		}
		if other, dup := codes[code]; dup {
			t.Fatalf("%v and %v share code %d", k, other, code)
		}
		codes[code] = k
	}

	if len(codes) != 15 {
		t.Fatalf("expected 15 codes, got %d", len(codes))
	}

	for _, k := range []Kind{KindResponse, KindRegisterResponse, KindSubmitResponse, KindFetchAllResponse} {
		if !V1.IsResponse(k) {
			t.Fatalf("%v is no response", k)
		}
	}
	for _, k := range []Kind{KindRegisterRequest, KindDeliveryNotification, KindErrorFrame} {
		if V1.IsResponse(k) {
			t.Fatalf("%v is a response", k)
		}
	}

	if name := V1.Name(KindSubmitRequest); name != "BundleCreate" {
		t.Fatalf("unexpected name %q", name)
	}
}

func TestBundleArgsValidate(t *testing.T) {
	src := bpv7.MustNewEndpointID("dtn://src/")
	dst := bpv7.MustNewEndpointID("dtn://dst/")

	tests := []struct {
		name  string
		args  BundleArgs
		valid bool
	}{
		{"minimal", BundleArgs{Source: src, Destination: dst}, true},
		{"lifetime", BundleArgs{Source: src, Destination: dst, Lifetime: "90m"}, true},
		{"no-source", BundleArgs{Destination: dst}, false},
		{"dtn-none-destination", BundleArgs{Source: src, Destination: bpv7.DtnNone()}, false},
		{"bad-lifetime", BundleArgs{Source: src, Destination: dst, Lifetime: "forever"}, false},
		{"negative-lifetime", BundleArgs{Source: src, Destination: dst, Lifetime: "-1h"}, false},
		{"fragment-flag", BundleArgs{Source: src, Destination: dst, ControlFlags: bpv7.IsFragment}, false},
		{"hop-limit", BundleArgs{Source: src, Destination: dst, HopLimit: 256}, false},
		{"crc", BundleArgs{Source: src, Destination: dst, CRC: 3}, false},
	}

	for _, test := range tests {
		err := test.args.Validate()
		if (err == nil) != test.valid {
			t.Fatalf("%s: expected valid = %t, got %v", test.name, test.valid, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidMessage) {
			t.Fatalf("%s: %v does not wrap ErrInvalidMessage", test.name, err)
		}
	}
}
