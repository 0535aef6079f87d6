// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux
// +build linux

package transport

import (
	"context"
	"os"
	"testing"
)

func TestDialPeerCredentials(t *testing.T) {
	path, ln := listen(t)

	go func() {
		if conn, err := ln.Accept(); err == nil {
			defer conn.Close()
			_, _ = conn.Read(make([]byte, 1))
		}
	}()

	c, err := Dial(context.Background(), path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	peer := c.Peer()
	if peer == nil {
		t.Fatal("no peer credentials")
	}
	if int(peer.PID) != os.Getpid() {
		t.Fatalf("expected PID %d, got %d", os.Getpid(), peer.PID)
	}
	if int(peer.UID) != os.Getuid() {
		t.Fatalf("expected UID %d, got %d", os.Getuid(), peer.UID)
	}
}
