// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

// PeerCredentials of the process on the socket's other side.
type PeerCredentials struct {
	PID int32
	UID uint32
	GID uint32
}
