// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package wire

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
)

// BundleArgs describe a Bundle to be built by the daemon. The keys match
// dtnd's bundle builder, which maps each key to one builder method.
type BundleArgs struct {
	Source               bpv7.EndpointID         `msgpack:"source"`
	Destination          bpv7.EndpointID         `msgpack:"destination"`
	CreationTimestampNow bool                    `msgpack:"creation_timestamp_now"`
	Lifetime             string                  `msgpack:"lifetime"`
	Payload              []byte                  `msgpack:"payload_block"`
	ControlFlags         bpv7.BundleControlFlags `msgpack:"bundle_ctrl_flags,omitempty"`
	HopLimit             uint64                  `msgpack:"hop_count_block,omitempty"`
	ReportTo             bpv7.EndpointID         `msgpack:"report_to,omitempty"`
	CRC                  bpv7.CRCType            `msgpack:"crc,omitempty"`
}

// Validate collects all problems of these arguments.
func (args BundleArgs) Validate() (errs error) {
	if err := checkEndpoint("source", args.Source); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := checkEndpoint("destination", args.Destination); err != nil {
		errs = multierror.Append(errs, err)
	} else if args.Destination.IsDtnNone() {
		errs = multierror.Append(errs, fmt.Errorf("%w: destination must not be dtn:none", ErrInvalidMessage))
	}

	if !args.ReportTo.IsZero() {
		if err := checkEndpoint("report_to", args.ReportTo); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	if args.Lifetime != "" {
		if d, err := time.ParseDuration(args.Lifetime); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%w: lifetime: %w", ErrInvalidMessage, err))
		} else if d <= 0 {
			errs = multierror.Append(errs, fmt.Errorf("%w: lifetime must be positive, not %v", ErrInvalidMessage, d))
		}
	}

	if err := args.ControlFlags.CheckValid(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("%w: %w", ErrInvalidMessage, err))
	}

	if args.HopLimit > 255 {
		errs = multierror.Append(errs, fmt.Errorf("%w: hop limit %d exceeds 255", ErrInvalidMessage, args.HopLimit))
	}

	if args.CRC > bpv7.CRC32 {
		errs = multierror.Append(errs, fmt.Errorf("%w: unknown CRC type %d", ErrInvalidMessage, args.CRC))
	}

	return
}

// BundleContent is a stored or delivered Bundle, reduced to what an
// application needs.
type BundleContent struct {
	BundleID      string          `msgpack:"BundleID"`
	SourceID      bpv7.EndpointID `msgpack:"SourceID"`
	DestinationID bpv7.EndpointID `msgpack:"DestinationID"`
	Payload       []byte          `msgpack:"Payload"`
}

// Validate requires an ID and a destination.
func (bc BundleContent) Validate() error {
	if bc.BundleID == "" {
		return fmt.Errorf("%w: BundleID is empty", ErrInvalidMessage)
	}
	return checkEndpoint("DestinationID", bc.DestinationID)
}
