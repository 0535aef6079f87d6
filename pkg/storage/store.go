// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package storage archives received deliveries on disk, indexed by their
// mailbox and expiration date.
package storage

import (
	"errors"
	"os"
	"path"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/registry"
)

const (
	dirBadger string = "db"
	dirBundle string = "bndl"

	// DefaultRetention is used for a zero retention.
	DefaultRetention = 24 * time.Hour
)

// ErrNotFound is returned for unknown Bundle IDs.
var ErrNotFound = badgerhold.ErrNotFound

// Store archives deliveries together with meta data.
type Store struct {
	bh *badgerhold.Store

	badgerDir string
	bundleDir string
	retention time.Duration
}

// NewStore creates a new Store or opens an existing Store from the given
// path. Archived Bundles expire after their creation time plus retention.
func NewStore(dir string, retention time.Duration) (s *Store, err error) {
	badgerDir := path.Join(dir, dirBadger)
	bundleDir := path.Join(dir, dirBundle)

	if retention <= 0 {
		retention = DefaultRetention
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	if dirErr := os.MkdirAll(badgerDir, 0700); dirErr != nil {
		err = dirErr
		return
	}
	if dirErr := os.MkdirAll(bundleDir, 0700); dirErr != nil {
		err = dirErr
		return
	}

	if bh, bhErr := badgerhold.Open(opts); bhErr != nil {
		err = bhErr
	} else {
		s = &Store{
			bh: bh,

			badgerDir: badgerDir,
			bundleDir: bundleDir,
			retention: retention,
		}
	}
	return
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// Push a received Delivery to the Store. Fragments of the same Bundle are
// collected in one ArchiveItem, known parts are ignored.
func (s *Store) Push(d registry.Delivery) error {
	logger := log.WithFields(log.Fields{
		"bundle":  d.BundleID,
		"mailbox": d.DestinationID,
	})

	ai := newArchiveItem(d, s.retention, s.bundleDir)
	rec := &record{DeliveryNotification: d.DeliveryNotification}

	aiStore, err := s.QueryId(d.BundleID)
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Debug("Bundle ID is unknown, inserting ArchiveItem")

		if err := ai.Parts[0].store(rec); err != nil {
			return err
		}
		return s.bh.Insert(ai.Id, ai)

	case err != nil:
		return err

	case !ai.Fragmented || !aiStore.Fragmented:
		logger.Debug("Bundle ID is known, ignoring push")
		return nil
	}

	newPart := ai.Parts[0]
	for _, part := range aiStore.Parts {
		if part.FragmentOffset == newPart.FragmentOffset && part.Length == newPart.Length {
			logger.Debug("Received bundle fragment, which is already archived")
			return nil
		}
	}

	logger.WithField("offset", newPart.FragmentOffset).Debug("Received new bundle fragment, updating ArchiveItem")

	if err := newPart.store(rec); err != nil {
		return err
	}

	aiStore.Parts = append(aiStore.Parts, newPart)
	return s.bh.Update(aiStore.Id, aiStore)
}

// Delete an ArchiveItem and its parts. Unknown Bundle IDs are ignored.
func (s *Store) Delete(id string) error {
	ai, err := s.QueryId(id)
	if errors.Is(err, ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}

	log.WithField("bundle", id).Debug("Store deletes ArchiveItem")

	for _, part := range ai.Parts {
		if err := part.delete(); err != nil {
			log.WithFields(log.Fields{
				"bundle": id,
				"file":   part.Filename,
				"error":  err,
			}).Warn("Failed to delete ArchivePart")
		}
	}

	return s.bh.Delete(ai.Id, ArchiveItem{})
}

// DeleteExpired removes all expired Bundles and returns their number.
func (s *Store) DeleteExpired() (deleted int) {
	var ais []ArchiveItem
	if err := s.bh.Find(&ais, badgerhold.Where("Expires").Lt(time.Now())); err != nil {
		log.WithError(err).Warn("Failed to get expired Bundles")
		return
	}

	for _, ai := range ais {
		logger := log.WithField("bundle", ai.Id)
		if err := s.Delete(ai.Id); err != nil {
			logger.WithError(err).Warn("Failed to delete expired Bundle")
		} else {
			logger.Info("Deleted expired Bundle")
			deleted++
		}
	}
	return
}

// QueryId fetches the ArchiveItem for a Bundle ID.
func (s *Store) QueryId(id string) (ai ArchiveItem, err error) {
	err = s.bh.Get(id, &ai)
	return
}

// Query all ArchiveItems of a mailbox, oldest first.
func (s *Store) Query(mailbox bpv7.EndpointID) (ais []ArchiveItem, err error) {
	if err = s.bh.Find(&ais, badgerhold.Where("Mailbox").Eq(mailbox.String())); err != nil {
		return
	}

	sort.SliceStable(ais, func(i, j int) bool { return ais[i].Received.Before(ais[j].Received) })
	return
}

// KnowsBundle checks if such a Bundle is archived.
func (s *Store) KnowsBundle(id string) bool {
	_, err := s.QueryId(id)
	return err == nil
}
