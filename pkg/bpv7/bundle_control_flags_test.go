// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/json"
	"testing"
)

func TestBundleControlFlagsHas(t *testing.T) {
	var cf BundleControlFlags = StatusRequestDeletion | StatusRequestDelivery

	if !cf.Has(StatusRequestDeletion) {
		t.Fatal("cf has no StatusRequestDeletion-flag even when it was set")
	}
	if cf.Has(MustNotFragmented) {
		t.Fatal("cf has MustNotFragmented-flag which was not set")
	}
}

func TestParseBundleControlFlags(t *testing.T) {
	tests := []struct {
		names []string
		flags BundleControlFlags
		valid bool
	}{
		{nil, 0, true},
		{[]string{"MUST_NOT_BE_FRAGMENTED"}, MustNotFragmented, true},
		{[]string{"must_not_be_fragmented", " REQUESTED_DELIVERY_STATUS_REPORT"}, MustNotFragmented | StatusRequestDelivery, true},
		{[]string{"NOPE"}, 0, false},
		{[]string{"MUST_NOT_BE_FRAGMENTED", "NOPE", "NEITHER"}, MustNotFragmented, false},
	}

	for _, test := range tests {
		flags, err := ParseBundleControlFlags(test.names)
		if (err == nil) != test.valid {
			t.Fatalf("%v: expected valid = %t, got %v", test.names, test.valid, err)
		}
		if flags != test.flags {
			t.Fatalf("%v: expected %v, got %v", test.names, test.flags, flags)
		}
	}
}

func TestBundleControlFlagsCheckValid(t *testing.T) {
	tests := []struct {
		cf    BundleControlFlags
		valid bool
	}{
		{0, true},
		{MustNotFragmented | StatusRequestDelivery, true},
		{IsFragment, false},
		{AdministrativeRecordPayload, false},
		{IsFragment | AdministrativeRecordPayload, false},
	}

	for _, test := range tests {
		if err := test.cf.CheckValid(); (err == nil) != test.valid {
			t.Fatalf("BundleControlFlags %v: expected valid = %t, got %v", test.cf, test.valid, err)
		}
	}
}

func TestBundleControlFlagsStrings(t *testing.T) {
	cf := MustNotFragmented | StatusRequestDelivery
	if s := cf.String(); s != "REQUESTED_DELIVERY_STATUS_REPORT,MUST_NOT_BE_FRAGMENTED" {
		t.Fatalf("unexpected string %q", s)
	}
}

func TestBundleControlFlagsJson(t *testing.T) {
	tests := []struct {
		cf        BundleControlFlags
		jsonBytes string
	}{
		{0, `null`},
		{MustNotFragmented, `["MUST_NOT_BE_FRAGMENTED"]`},
		{MustNotFragmented | StatusRequestDelivery, `["REQUESTED_DELIVERY_STATUS_REPORT","MUST_NOT_BE_FRAGMENTED"]`},
	}

	for _, test := range tests {
		if jsonBytes, err := json.Marshal(test.cf); err != nil {
			t.Fatal(err)
		} else if string(jsonBytes) != test.jsonBytes {
			t.Fatalf("expected %s, got %s", test.jsonBytes, jsonBytes)
		}

		cf := RequestStatusTime
		if err := json.Unmarshal([]byte(test.jsonBytes), &cf); err != nil {
			t.Fatal(err)
		} else if cf != test.cf {
			t.Fatalf("%s: expected %v, got %v", test.jsonBytes, test.cf, cf)
		}
	}

	var cf BundleControlFlags
	for _, invalid := range []string{`["NOPE"]`, `4`, `"MUST_NOT_BE_FRAGMENTED"`} {
		if err := json.Unmarshal([]byte(invalid), &cf); err == nil {
			t.Fatalf("%s: expected an error", invalid)
		}
	}
}

func TestParseCRCType(t *testing.T) {
	tests := []struct {
		in    string
		crc   CRCType
		valid bool
	}{
		{"", CRCNo, true},
		{"no", CRCNo, true},
		{"16", CRC16, true},
		{"crc32", CRC32, true},
		{"64", CRCNo, false},
	}

	for _, test := range tests {
		crc, err := ParseCRCType(test.in)
		if (err == nil) != test.valid || crc != test.crc {
			t.Fatalf("%q: expected (%v, %t), got (%v, %v)", test.in, test.crc, test.valid, crc, err)
		}
	}
}
