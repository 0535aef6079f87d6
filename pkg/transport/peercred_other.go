// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux
// +build !linux

package transport

import (
	"errors"
	"net"
)

// peerCredentials is only implemented for Linux.
func peerCredentials(_ net.Conn) (*PeerCredentials, error) {
	return nil, errors.New("peer credentials are not supported on this platform")
}
