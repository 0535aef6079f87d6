// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package rest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
)

// RegisterRequest describes a JSON to be POSTed to /register.
type RegisterRequest struct {
	EndpointId string `json:"endpoint_id"`
}

// RegisterResponse describes a JSON response for /register.
type RegisterResponse struct {
	Error string `json:"error"`
	UUID  string `json:"uuid"`
}

// UnregisterRequest describes a JSON to be POSTed to /unregister.
type UnregisterRequest struct {
	UUID string `json:"uuid"`
}

// UnregisterResponse describes a JSON response for /unregister.
type UnregisterResponse struct {
	Error string `json:"error"`
}

// FetchRequest describes a JSON to be POSTed to /fetch.
type FetchRequest struct {
	UUID string `json:"uuid"`
}

// FetchResponse describes a JSON response for /fetch.
type FetchResponse struct {
	Error   string   `json:"error"`
	Bundles []Bundle `json:"bundles"`
}

// BuildRequest describes a JSON to be POSTed to /build. The arguments are
// passed to dtnd's bundle builder.
type BuildRequest struct {
	UUID string                 `json:"uuid"`
	Args map[string]interface{} `json:"arguments"`
}

// BuildResponse describes a JSON response for /build.
type BuildResponse struct {
	Error string `json:"error"`
}

// Bundle is the JSON representation of a fetched Bundle.
type Bundle struct {
	PrimaryBlock    PrimaryBlock     `json:"primaryBlock"`
	CanonicalBlocks []CanonicalBlock `json:"canonicalBlocks"`
}

// PrimaryBlock of a fetched Bundle.
type PrimaryBlock struct {
	ControlFlags      bpv7.BundleControlFlags `json:"bundleControlFlags"`
	Destination       bpv7.EndpointID         `json:"destination"`
	Source            bpv7.EndpointID         `json:"source"`
	ReportTo          bpv7.EndpointID         `json:"reportTo"`
	CreationTimestamp bpv7.CreationTimestamp  `json:"creationTimestamp"`
	Lifetime          uint64                  `json:"lifetime"`
}

// CanonicalBlock of a fetched Bundle. Data is left raw, its format depends
// on the block type.
type CanonicalBlock struct {
	BlockNumber   uint64                 `json:"blockNumber"`
	BlockTypeCode uint64                 `json:"blockTypeCode"`
	BlockType     string                 `json:"blockType"`
	ControlFlags  bpv7.BlockControlFlags `json:"blockControlFlags"`
	Data          json.RawMessage        `json:"data"`
}

// payloadBlockTypeCode as defined in RFC 9171, section 4.3.3.
const payloadBlockTypeCode uint64 = 1

// Payload returns the data of the Bundle's payload block.
func (b Bundle) Payload() (payload []byte, err error) {
	for _, cb := range b.CanonicalBlocks {
		if cb.BlockTypeCode != payloadBlockTypeCode {
			continue
		}

		err = json.Unmarshal(cb.Data, &payload)
		return
	}

	err = fmt.Errorf("bundle from %v has no payload block", b.PrimaryBlock.Source)
	return
}

// FileName for storing this Bundle's payload, derived from its destination
// and creation time.
func (b Bundle) FileName() string {
	name := fmt.Sprintf("%v-%v", b.PrimaryBlock.Destination, b.PrimaryBlock.CreationTimestamp.DtnTime())
	return strings.NewReplacer("/", "", ":", "_", " ", "_").Replace(name)
}
