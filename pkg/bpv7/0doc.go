// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bpv7 provides the Bundle Protocol Version 7 types a client of a dtnd
// application agent has to deal with: Endpoint IDs, Bundle Processing Control
// Flags and CRC types.
//
// Endpoint IDs are parsed and normalised from their URI representation.
//
//	eid, err := bpv7.NewEndpointID("dtn://node1/app1")
//	ipn := bpv7.MustNewEndpointID("ipn:23.42")
//
// Both the "dtn" and the "ipn" scheme are supported. An EndpointID is a
// comparable value and might be used as a map key.
package bpv7
