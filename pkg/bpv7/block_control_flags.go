// SPDX-FileCopyrightText: 2018, 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// BlockControlFlags is an uint which represents the Block Processing Control
// Flags as specified in RFC 9171, section 4.2.4. They are only read from
// Bundles fetched from dtnd.
type BlockControlFlags uint64

const (
	// ReplicateBlock requires this block to be replicated in every fragment.
	ReplicateBlock BlockControlFlags = 0x01

	// StatusReportBlock requires transmission of a status report if this block cannot be processed.
	StatusReportBlock BlockControlFlags = 0x02

	// DeleteBundle requires bundle deletion if this block cannot be processed.
	DeleteBundle BlockControlFlags = 0x04

	// RemoveBlock requires the block to be removed from the bundle if it cannot be processed.
	RemoveBlock BlockControlFlags = 0x10
)

var blockControlFlagNames = []struct {
	flag BlockControlFlags
	name string
}{
	{DeleteBundle, "DELETE_BUNDLE"},
	{StatusReportBlock, "REQUEST_STATUS_REPORT"},
	{RemoveBlock, "REMOVE_BLOCK"},
	{ReplicateBlock, "REPLICATE_BLOCK"},
}

// ParseBlockControlFlags from a list of flag names, e.g., "DELETE_BUNDLE".
func ParseBlockControlFlags(names []string) (bcf BlockControlFlags, errs error) {
	for _, name := range names {
		known := false
		for _, f := range blockControlFlagNames {
			if strings.EqualFold(f.name, strings.TrimSpace(name)) {
				bcf |= f.flag
				known = true
				break
			}
		}

		if !known {
			errs = multierror.Append(errs, fmt.Errorf("unknown block control flag %q", name))
		}
	}
	return
}

// Has returns true if a given flag or mask of flags is set.
func (bcf BlockControlFlags) Has(flag BlockControlFlags) bool {
	return (bcf & flag) != 0
}

// Strings returns an array of all flags as a string representation.
func (bcf BlockControlFlags) Strings() (fields []string) {
	for _, f := range blockControlFlagNames {
		if bcf.Has(f.flag) {
			fields = append(fields, f.name)
		}
	}
	return
}

// MarshalJSON returns a JSON array of control flags.
func (bcf BlockControlFlags) MarshalJSON() ([]byte, error) {
	return json.Marshal(bcf.Strings())
}

// UnmarshalJSON reads a JSON array of flag names, null meaning no flags.
func (bcf *BlockControlFlags) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}

	flags, err := ParseBlockControlFlags(names)
	if err != nil {
		return err
	}

	*bcf = flags
	return nil
}

func (bcf BlockControlFlags) String() string {
	return strings.Join(bcf.Strings(), ",")
}
