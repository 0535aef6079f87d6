// SPDX-FileCopyrightText: 2018, 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dtn7/cboring"
)

// DtnTime is an integer representation of milliseconds since the start of the year 2000 (UTC).
type DtnTime uint64

const (
	milliseconds1970To2k int64 = 946684800000

	milliToSec int64 = 1000

	// DtnTimeEpoch represents the zero timestamp/epoch.
	DtnTimeEpoch DtnTime = 0

	dtnTimeLayout = "2006-01-02 15:04:05.000"
)

// Time returns a UTC-based time.Time for this DtnTime.
func (t DtnTime) Time() time.Time {
	return time.UnixMilli(int64(t) + milliseconds1970To2k).UTC()
}

// String returns this DtnTime's string representation, as used by dtnd's JSON.
func (t DtnTime) String() string {
	return t.Time().Format(dtnTimeLayout)
}

// DtnTimeFromTime returns the DtnTime for the time.Time. Points in time before
// the DTN epoch are mapped to the epoch.
func DtnTimeFromTime(t time.Time) DtnTime {
	if ms := t.UnixMilli() - milliseconds1970To2k; ms > 0 {
		return DtnTime(ms)
	}
	return DtnTimeEpoch
}

// DtnTimeNow returns the current (UTC) time as DtnTime.
func DtnTimeNow() DtnTime {
	return DtnTimeFromTime(time.Now())
}

// CreationTimestamp is a tuple of a DtnTime and a sequence number, which
// identifies a Bundle together with its source, RFC 9171 section 4.2.7.
type CreationTimestamp [2]uint64

// NewCreationTimestamp creates a new creation timestamp from a given DTN time
// and a sequence number.
func NewCreationTimestamp(time DtnTime, sequence uint64) CreationTimestamp {
	return [2]uint64{uint64(time), sequence}
}

// DtnTime returns the creation timestamp's DTN time part.
func (ct CreationTimestamp) DtnTime() DtnTime {
	return DtnTime(ct[0])
}

// IsZeroTime returns if the time part is set to zero, indicating the lack of
// an accurate clock on the creating node.
func (ct CreationTimestamp) IsZeroTime() bool {
	return ct.DtnTime() == DtnTimeEpoch
}

// SequenceNumber returns the creation timestamp's sequence number.
func (ct CreationTimestamp) SequenceNumber() uint64 {
	return ct[1]
}

func (ct CreationTimestamp) String() string {
	return fmt.Sprintf("(%v, %d)", ct.DtnTime(), ct.SequenceNumber())
}

// MarshalCbor writes a CBOR representation for this CreationTimestamp.
func (ct *CreationTimestamp) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	for _, f := range ct {
		if err := cboring.WriteUInt(f, w); err != nil {
			return err
		}
	}

	return nil
}

// UnmarshalCbor reads a CBOR representation of a CreationTimestamp.
func (ct *CreationTimestamp) UnmarshalCbor(r io.Reader) error {
	if l, err := cboring.ReadArrayLength(r); err != nil {
		return err
	} else if l != 2 {
		return fmt.Errorf("expected array with length 2, got %d", l)
	}

	for i := 0; i < 2; i++ {
		if f, err := cboring.ReadUInt(r); err != nil {
			return err
		} else {
			ct[i] = f
		}
	}

	return nil
}

type creationTimestampJSON struct {
	Date string `json:"date"`
	Seq  uint64 `json:"sequenceNo"`
}

// MarshalJSON creates a JSON object like dtnd's REST agent does.
func (ct CreationTimestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(creationTimestampJSON{
		Date: ct.DtnTime().String(),
		Seq:  ct.SequenceNumber(),
	})
}

// UnmarshalJSON parses a JSON object as created by dtnd's REST agent.
func (ct *CreationTimestamp) UnmarshalJSON(data []byte) error {
	var tmp creationTimestampJSON
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}

	date, err := time.ParseInLocation(dtnTimeLayout, tmp.Date, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid creation timestamp date: %w", err)
	}

	*ct = NewCreationTimestamp(DtnTimeFromTime(date), tmp.Seq)
	return nil
}
