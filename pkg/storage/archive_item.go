// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package storage

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"time"

	"github.com/dtn7/cboring"

	"github.com/dtn7/dtnclient-go/pkg/registry"
	"github.com/dtn7/dtnclient-go/pkg/wire"
)

// ErrIncomplete is returned by Load for a fragmented Bundle with missing parts.
var ErrIncomplete = errors.New("bundle is incomplete")

// ArchiveItem is the meta data of an archived Bundle. Its delivered parts are
// stored as CBOR files next to the database.
type ArchiveItem struct {
	Id string `badgerhold:"key"`

	Mailbox string `badgerholdIndex:"Mailbox"`
	Source  string

	Received time.Time
	Expires  time.Time `badgerholdIndex:"Expires"`

	Fragmented      bool
	TotalDataLength uint64
	Parts           []ArchivePart
}

// ArchivePart links an ArchiveItem to one delivered Bundle or fragment.
type ArchivePart struct {
	Filename string

	FragmentOffset uint64
	Length         uint64
}

func (ap ArchivePart) store(rec *record) error {
	f, err := os.OpenFile(ap.Filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	if err := cboring.Marshal(rec, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (ap ArchivePart) delete() error {
	return os.Remove(ap.Filename)
}

// Load the delivery stored for this part.
func (ap ArchivePart) Load() (dn wire.DeliveryNotification, err error) {
	f, err := os.Open(ap.Filename)
	if err != nil {
		return
	}
	defer f.Close()

	var rec record
	if err = cboring.Unmarshal(&rec, f); err == nil {
		dn = rec.DeliveryNotification
	}
	return
}

// IsComplete checks if the parts cover the whole payload.
func (ai ArchiveItem) IsComplete() bool {
	if !ai.Fragmented {
		return len(ai.Parts) > 0
	}

	parts := append([]ArchivePart(nil), ai.Parts...)
	sort.Slice(parts, func(i, j int) bool { return parts[i].FragmentOffset < parts[j].FragmentOffset })

	var covered uint64
	for _, part := range parts {
		if part.FragmentOffset > covered {
			return false
		}
		if end := part.FragmentOffset + part.Length; end > covered {
			covered = end
		}
	}
	return covered >= ai.TotalDataLength
}

// Load the archived Bundle. Fragments are reassembled into one delivery.
func (ai ArchiveItem) Load() (dn wire.DeliveryNotification, err error) {
	if !ai.IsComplete() {
		err = fmt.Errorf("%w: %s", ErrIncomplete, ai.Id)
		return
	}
	if !ai.Fragmented {
		return ai.Parts[0].Load()
	}

	payload := make([]byte, ai.TotalDataLength)
	for _, part := range ai.Parts {
		var fragment wire.DeliveryNotification
		if fragment, err = part.Load(); err != nil {
			return
		}
		copy(payload[part.FragmentOffset:], fragment.Payload)
		dn = fragment
	}

	dn.Payload = payload
	dn.IsFragment = false
	dn.FragmentOffset = 0
	dn.TotalDataLength = 0
	return
}

// calcExpirationDate from the Bundle's creation time or, lacking a clock at
// the source, from its arrival.
func calcExpirationDate(d registry.Delivery, retention time.Duration) time.Time {
	if ct := d.CreationTimestamp; !ct.IsZeroTime() {
		return ct.DtnTime().Time().Add(retention)
	}
	return d.Received.Add(retention)
}

// archivePartPath returns a path for a delivered Bundle or fragment.
func archivePartPath(d registry.Delivery, storagePath string) string {
	f := fmt.Sprintf("%x", sha256.Sum256([]byte(fmt.Sprintf("%s-%d", d.BundleID, d.FragmentOffset))))
	return path.Join(storagePath, f)
}

// newArchiveItem creates a new ArchiveItem for a Delivery.
func newArchiveItem(d registry.Delivery, retention time.Duration, storagePath string) (ai ArchiveItem) {
	ai = ArchiveItem{
		Id: d.BundleID,

		Mailbox: d.DestinationID.String(),
		Source:  d.SourceID.String(),

		Received: d.Received,
		Expires:  calcExpirationDate(d, retention),

		Fragmented:      d.IsFragment,
		TotalDataLength: d.TotalDataLength,
	}

	ai.Parts = append(ai.Parts, ArchivePart{
		Filename:       archivePartPath(d, storagePath),
		FragmentOffset: d.FragmentOffset,
		Length:         uint64(len(d.Payload)),
	})

	return
}
