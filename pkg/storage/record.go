// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"fmt"
	"io"

	"github.com/dtn7/cboring"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

// record is the on-disk CBOR representation of one delivered Bundle or fragment.
type record struct {
	wire.DeliveryNotification
}

// MarshalCbor writes the record as a CBOR array of eight elements.
func (rec *record) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(8, w); err != nil {
		return err
	}

	if err := cboring.WriteTextString(rec.BundleID, w); err != nil {
		return err
	}
	for _, eid := range []*bpv7.EndpointID{&rec.SourceID, &rec.DestinationID} {
		if eid.IsZero() {
			*eid = bpv7.DtnNone()
		}
		if err := cboring.Marshal(eid, w); err != nil {
			return fmt.Errorf("marshalling endpoint failed: %w", err)
		}
	}
	if err := cboring.Marshal(&rec.CreationTimestamp, w); err != nil {
		return err
	}
	if err := cboring.WriteByteString(rec.Payload, w); err != nil {
		return err
	}
	if err := cboring.WriteBoolean(rec.IsFragment, w); err != nil {
		return err
	}
	for _, n := range []uint64{rec.FragmentOffset, rec.TotalDataLength} {
		if err := cboring.WriteUInt(n, w); err != nil {
			return err
		}
	}

	return nil
}

// UnmarshalCbor reads a record written by MarshalCbor.
func (rec *record) UnmarshalCbor(r io.Reader) error {
	if n, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if n != 8 {
		return fmt.Errorf("record: expected array of 8 elements, got %d", n)
	}

	if id, err := cboring.ReadTextString(r); err != nil {
		return err
	} else {
		rec.BundleID = id
	}
	for _, eid := range []*bpv7.EndpointID{&rec.SourceID, &rec.DestinationID} {
		if err := cboring.Unmarshal(eid, r); err != nil {
			return fmt.Errorf("unmarshalling endpoint failed: %w", err)
		}
	}
	if err := cboring.Unmarshal(&rec.CreationTimestamp, r); err != nil {
		return err
	}
	if payload, err := cboring.ReadByteString(r); err != nil {
		return err
	} else {
		rec.Payload = payload
	}
	if b, err := cboring.ReadBoolean(r); err != nil {
		return err
	} else {
		rec.IsFragment = b
	}
	for _, n := range []*uint64{&rec.FragmentOffset, &rec.TotalDataLength} {
		if i, err := cboring.ReadUInt(r); err != nil {
			return err
		} else {
			*n = i
		}
	}

	return nil
}
