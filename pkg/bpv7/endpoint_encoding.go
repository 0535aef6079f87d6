// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Both the UNIX agent's MessagePack dialect and the REST agent's JSON use an
// EndpointID's URI as a plain string. An empty string is the zero EndpointID.

func (eid *EndpointID) fromString(s string) error {
	if s == "" {
		*eid = EndpointID{}
		return nil
	}

	e, err := NewEndpointID(s)
	if err != nil {
		return err
	}
	*eid = e
	return nil
}

// MarshalMsgpack encodes this EndpointID as a MessagePack string.
func (eid EndpointID) MarshalMsgpack() ([]byte, error) {
	return msgpack.Marshal(eid.String())
}

// UnmarshalMsgpack decodes and validates a MessagePack string.
func (eid *EndpointID) UnmarshalMsgpack(data []byte) error {
	var s string
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return err
	}
	return eid.fromString(s)
}

// MarshalJSON encodes this EndpointID as a JSON string.
func (eid EndpointID) MarshalJSON() ([]byte, error) {
	return json.Marshal(eid.String())
}

// UnmarshalJSON decodes and validates a JSON string.
func (eid *EndpointID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return eid.fromString(s)
}

// MarshalText allows EndpointIDs as TOML and YAML values.
func (eid EndpointID) MarshalText() ([]byte, error) {
	return []byte(eid.String()), nil
}

// UnmarshalText parses an EndpointID from its URI.
func (eid *EndpointID) UnmarshalText(text []byte) error {
	return eid.fromString(string(text))
}
