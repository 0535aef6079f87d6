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

// BundleControlFlags is an uint which represents the Bundle Processing
// Control Flags as specified in RFC 9171, section 4.2.3. A client requests
// those flags for a Bundle to be created by the daemon.
type BundleControlFlags uint64

const (
	// IsFragment indicates this bundle is a fragment.
	IsFragment BundleControlFlags = 0x000001

	// AdministrativeRecordPayload indicates the payload is an administrative record.
	AdministrativeRecordPayload BundleControlFlags = 0x000002

	// MustNotFragmented forbids bundle fragmentation.
	MustNotFragmented BundleControlFlags = 0x000004

	// RequestUserApplicationAck requests an acknowledgement from the application agent.
	RequestUserApplicationAck BundleControlFlags = 0x000020

	// RequestStatusTime requests a status time in all status reports.
	RequestStatusTime BundleControlFlags = 0x000040

	// StatusRequestReception requests a bundle reception status report.
	StatusRequestReception BundleControlFlags = 0x004000

	// StatusRequestForward requests a bundle forwarding status report.
	StatusRequestForward BundleControlFlags = 0x010000

	// StatusRequestDelivery requests a bundle delivery status report.
	StatusRequestDelivery BundleControlFlags = 0x020000

	// StatusRequestDeletion requests a bundle deletion status report.
	StatusRequestDeletion BundleControlFlags = 0x040000
)

var bundleControlFlagNames = []struct {
	flag BundleControlFlags
	name string
}{
	{StatusRequestDeletion, "REQUESTED_DELETION_STATUS_REPORT"},
	{StatusRequestDelivery, "REQUESTED_DELIVERY_STATUS_REPORT"},
	{StatusRequestForward, "REQUESTED_FORWARD_STATUS_REPORT"},
	{StatusRequestReception, "REQUESTED_RECEPTION_STATUS_REPORT"},
	{RequestStatusTime, "REQUESTED_TIME_IN_STATUS_REPORT"},
	{RequestUserApplicationAck, "REQUESTED_APPLICATION_ACK"},
	{MustNotFragmented, "MUST_NOT_BE_FRAGMENTED"},
	{AdministrativeRecordPayload, "ADMINISTRATIVE_PAYLOAD"},
	{IsFragment, "IS_FRAGMENT"},
}

// ParseBundleControlFlags from a list of flag names, e.g., "MUST_NOT_BE_FRAGMENTED".
// Names are case insensitive. All unknown names are reported together.
func ParseBundleControlFlags(names []string) (bcf BundleControlFlags, errs error) {
	for _, name := range names {
		known := false
		for _, f := range bundleControlFlagNames {
			if strings.EqualFold(f.name, strings.TrimSpace(name)) {
				bcf |= f.flag
				known = true
				break
			}
		}

		if !known {
			errs = multierror.Append(errs, fmt.Errorf("unknown bundle control flag %q", name))
		}
	}
	return
}

// Has returns true if a given flag or mask of flags is set.
func (bcf BundleControlFlags) Has(flag BundleControlFlags) bool {
	return (bcf & flag) != 0
}

// CheckValid returns an error for flag combinations the daemon would refuse.
// A client must neither request a fragment nor an administrative record.
func (bcf BundleControlFlags) CheckValid() (errs error) {
	if bcf.Has(IsFragment) {
		errs = multierror.Append(errs,
			fmt.Errorf("BundleControlFlags: a new bundle cannot be a fragment"))
	}

	if bcf.Has(AdministrativeRecordPayload) {
		errs = multierror.Append(errs,
			fmt.Errorf("BundleControlFlags: administrative records are reserved for the daemon"))
	}

	return
}

// Strings returns an array of all flags as a string representation.
func (bcf BundleControlFlags) Strings() (fields []string) {
	for _, f := range bundleControlFlagNames {
		if bcf.Has(f.flag) {
			fields = append(fields, f.name)
		}
	}
	return
}

func (bcf BundleControlFlags) String() string {
	return strings.Join(bcf.Strings(), ",")
}

// MarshalJSON returns a JSON array of control flags, null for none.
func (bcf BundleControlFlags) MarshalJSON() ([]byte, error) {
	return json.Marshal(bcf.Strings())
}

// UnmarshalJSON reads a JSON array of flag names as written by dtnd.
func (bcf *BundleControlFlags) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}

	flags, err := ParseBundleControlFlags(names)
	if err != nil {
		return err
	}

	*bcf = flags
	return nil
}
