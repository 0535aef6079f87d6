// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
)

const typeKey = "Type"

// Encode a Message with the V1 Protocol.
func Encode(m Message) ([]byte, error) {
	return V1.Encode(m)
}

// Decode a frame with the V1 Protocol.
func Decode(data []byte) (Message, error) {
	return V1.Decode(data)
}

// Encode a Message into a MessagePack map. Invalid messages are not encoded.
func (p *Protocol) Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnknownKind)
	}

	code, ok := p.Code(m.Kind())
	if !ok {
		return nil, fmt.Errorf("%w: %v in version %d", ErrUnknownKind, m.Kind(), p.Version)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	body, err := msgpack.Marshal(m)
	if err != nil {
		return nil, err
	}

	// The message structs do not know their own code.
	var fields map[string]interface{}
	if err := msgpack.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields[typeKey] = code

	var buff bytes.Buffer
	enc := msgpack.NewEncoder(&buff)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)

	if err := enc.Encode(fields); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

// Decode a single MessagePack map. Every failure is a *DecodeError.
func (p *Protocol) Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: errors.New("empty frame")}
	}

	r := bytes.NewReader(data)
	dec := msgpack.NewDecoder(r)

	if c, err := dec.PeekCode(); err != nil {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: err}
	} else if !msgpcode.IsFixedMap(c) && c != msgpcode.Map16 && c != msgpcode.Map32 {
		return nil, &DecodeError{Reason: ReasonNotMap, Err: fmt.Errorf("code 0x%02x", c)}
	}

	var head map[string]msgpack.RawMessage
	if err := dec.Decode(&head); err != nil {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: err}
	}

	if r.Len() != 0 {
		return nil, &DecodeError{Reason: ReasonTrailingBytes, Err: fmt.Errorf("%d bytes after message", r.Len())}
	}

	rawType, ok := head[typeKey]
	if !ok {
		return nil, &DecodeError{Reason: ReasonMissingType}
	}

	var code uint64
	if err := msgpack.Unmarshal(rawType, &code); err != nil {
		return nil, &DecodeError{Reason: ReasonFieldType, Err: err}
	}

	e, ok := p.byCode[code]
	if !ok {
		return nil, &DecodeError{Reason: ReasonUnknownTag, Code: code}
	}

	m, err := e.decode(data)
	if errors.Is(err, bpv7.ErrInvalidEndpoint) {
		return nil, &DecodeError{Reason: ReasonInvalid, Code: code, Err: err}
	} else if err != nil {
		return nil, &DecodeError{Reason: ReasonFieldType, Code: code, Err: err}
	}

	if err := m.Validate(); err != nil {
		return nil, &DecodeError{Reason: ReasonInvalid, Code: code, Err: err}
	}

	return m, nil
}

func decodeAs[T Message](data []byte) (Message, error) {
	var m T
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
