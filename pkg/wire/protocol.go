// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package wire implements the message grammar of dtnd's UNIX application agent.
//
// Each message is a MessagePack map with an integer "Type" key, which selects
// the message kind by the Protocol's table, and a "Token" key, correlating
// requests and their responses. The framing around a message is done by the
// transport package.
package wire

import "fmt"

// Kind of a Message, independent of its numeric wire code.
type Kind uint8

const (
	KindResponse Kind = iota + 1
	KindRegisterRequest
	KindRegisterResponse
	KindDeregisterRequest
	KindDeregisterResponse
	KindSubmitRequest
	KindSubmitResponse
	KindListRequest
	KindListResponse
	KindFetchRequest
	KindFetchResponse
	KindFetchAllRequest
	KindFetchAllResponse
	KindDeliveryNotification
	KindErrorFrame
)

// entry maps one wire code to a Kind and its decoder.
type entry struct {
	code     uint64
	kind     Kind
	name     string
	response bool
	decode   func([]byte) (Message, error)
}

// Protocol is a versioned table of all known messages.
type Protocol struct {
	Version uint

	byCode map[uint64]entry
	byKind map[Kind]entry
}

func newProtocol(version uint, entries []entry) *Protocol {
	p := &Protocol{
		Version: version,
		byCode:  make(map[uint64]entry, len(entries)),
		byKind:  make(map[Kind]entry, len(entries)),
	}

	for _, e := range entries {
		if _, dup := p.byCode[e.code]; dup {
			panic(fmt.Sprintf("wire: duplicate code %d in protocol version %d", e.code, version))
		}
		if _, dup := p.byKind[e.kind]; dup {
			panic(fmt.Sprintf("wire: duplicate kind %d in protocol version %d", e.kind, version))
		}

		p.byCode[e.code] = e
		p.byKind[e.kind] = e
	}

	return p
}

// V1 is the protocol spoken by dtnd's UNIX agent. Codes 1 to 11 are the
// daemon's own message types, the following ones are extensions.
var V1 = newProtocol(1, []entry{
	{1, KindResponse, "Response", true, decodeAs[Response]},
	{2, KindRegisterRequest, "RegisterEID", false, decodeAs[RegisterRequest]},
	{3, KindDeregisterRequest, "UnregisterEID", false, decodeAs[DeregisterRequest]},
	{4, KindSubmitRequest, "BundleCreate", false, decodeAs[SubmitRequest]},
	{5, KindSubmitResponse, "BundleCreateResponse", true, decodeAs[SubmitResponse]},
	{6, KindListRequest, "ListBundles", false, decodeAs[ListRequest]},
	{7, KindListResponse, "ListResponse", true, decodeAs[ListResponse]},
	{8, KindFetchRequest, "FetchBundle", false, decodeAs[FetchRequest]},
	{9, KindFetchResponse, "FetchBundleResponse", true, decodeAs[FetchResponse]},
	{10, KindFetchAllRequest, "FetchAllBundles", false, decodeAs[FetchAllRequest]},
	{11, KindFetchAllResponse, "FetchAllBundlesResponse", true, decodeAs[FetchAllResponse]},
	{12, KindRegisterResponse, "RegisterResponse", true, decodeAs[RegisterResponse]},
	{13, KindDeregisterResponse, "UnregisterResponse", true, decodeAs[DeregisterResponse]},
	{14, KindDeliveryNotification, "BundleDelivery", false, decodeAs[DeliveryNotification]},
	{15, KindErrorFrame, "Error", false, decodeAs[ErrorFrame]},
})

// Code returns the wire code of a Kind.
func (p *Protocol) Code(k Kind) (uint64, bool) {
	e, ok := p.byKind[k]
	return e.code, ok
}

// IsResponse reports whether a Kind completes a pending request.
func (p *Protocol) IsResponse(k Kind) bool {
	return p.byKind[k].response
}

// Name of a Kind as used in the daemon's protocol description.
func (p *Protocol) Name(k Kind) string {
	if e, ok := p.byKind[k]; ok {
		return e.name
	}
	return fmt.Sprintf("Unknown(%d)", k)
}

var kindNames = map[Kind]string{
	KindResponse:             "Response",
	KindRegisterRequest:      "RegisterRequest",
	KindRegisterResponse:     "RegisterResponse",
	KindDeregisterRequest:    "DeregisterRequest",
	KindDeregisterResponse:   "DeregisterResponse",
	KindSubmitRequest:        "SubmitRequest",
	KindSubmitResponse:       "SubmitResponse",
	KindListRequest:          "ListRequest",
	KindListResponse:         "ListResponse",
	KindFetchRequest:         "FetchRequest",
	KindFetchResponse:        "FetchResponse",
	KindFetchAllRequest:      "FetchAllRequest",
	KindFetchAllResponse:     "FetchAllResponse",
	KindDeliveryNotification: "DeliveryNotification",
	KindErrorFrame:           "ErrorFrame",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}
