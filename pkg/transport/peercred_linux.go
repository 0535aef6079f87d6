// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package transport

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// peerCredentials queries SO_PEERCRED, see unix(7).
func peerCredentials(conn net.Conn) (peer *PeerCredentials, err error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("%T does not expose its file descriptor", conn)
	}

	rawConn, err := sc.SyscallConn()
	if err != nil {
		return nil, err
	}

	var ucred *unix.Ucred
	ctrlErr := rawConn.Control(func(fd uintptr) {
		ucred, err = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if ctrlErr != nil {
		return nil, ctrlErr
	} else if err != nil {
		return nil, err
	}

	return &PeerCredentials{PID: ucred.Pid, UID: ucred.Uid, GID: ucred.Gid}, nil
}
