// SPDX-FileCopyrightText: 2018, 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import "fmt"

// CRCType indicates which CRC type the daemon should use for a new Bundle's
// blocks. Only the three defined consts CRCNo, CRC16 and CRC32 are valid, as
// specified in RFC 9171, section 4.2.1.
type CRCType uint64

const (
	// CRCNo means no CRC to be present at all.
	CRCNo CRCType = 0

	// CRC16 represents "a standard X-25 CRC-16".
	CRC16 CRCType = 1

	// CRC32 represents "a standard CRC32C (Castagnoli) CRC-32".
	CRC32 CRCType = 2
)

// ParseCRCType from its string representation, as used in configuration files.
func ParseCRCType(s string) (CRCType, error) {
	switch s {
	case "", "no", "none":
		return CRCNo, nil
	case "16", "crc16":
		return CRC16, nil
	case "32", "crc32":
		return CRC32, nil
	default:
		return CRCNo, fmt.Errorf("unknown CRC type %q", s)
	}
}

func (c CRCType) String() string {
	switch c {
	case CRCNo:
		return "no"
	case CRC16:
		return "16"
	case CRC32:
		return "32"
	default:
		return "unknown"
	}
}
