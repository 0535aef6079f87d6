// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMessage is wrapped by all validation errors.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnknownKind is returned when encoding a Message the Protocol has no code for.
	ErrUnknownKind = errors.New("message kind is not part of the protocol")
)

// Reason why a frame could not be decoded.
type Reason uint8

const (
	// ReasonMalformed is broken MessagePack.
	ReasonMalformed Reason = iota

	// ReasonNotMap is any top-level value other than a map.
	ReasonNotMap

	// ReasonMissingType is a map without "Type".
	ReasonMissingType

	// ReasonUnknownTag is a "Type" missing in the Protocol's table.
	ReasonUnknownTag

	// ReasonTrailingBytes is data after the top-level map.
	ReasonTrailingBytes

	// ReasonFieldType is a known field with a mismatching type.
	ReasonFieldType

	// ReasonInvalid is a message failing its validation.
	ReasonInvalid
)

func (r Reason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed"
	case ReasonNotMap:
		return "not a map"
	case ReasonMissingType:
		return "missing type"
	case ReasonUnknownTag:
		return "unknown tag"
	case ReasonTrailingBytes:
		return "trailing bytes"
	case ReasonFieldType:
		return "field type mismatch"
	case ReasonInvalid:
		return "invalid message"
	default:
		return fmt.Sprintf("Reason(%d)", r)
	}
}

// DecodeError is returned for each frame that cannot be turned into a Message.
type DecodeError struct {
	Reason Reason

	// Code is the frame's "Type", if it was read.
	Code uint64

	Err error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot decode message (type %d): %v", e.Code, e.Reason)
	}
	return fmt.Sprintf("cannot decode message (type %d): %v: %v", e.Code, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
