// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func pipeConns(opts Options) (*Conn, net.Conn) {
	a, b := net.Pipe()
	return NewConn(a, opts), b
}

func prefixed(length uint64, body []byte) []byte {
	buff := make([]byte, LengthPrefixSize, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint64(buff, length)
	return append(buff, body...)
}

func TestFrameRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	reader, writer := NewConn(a, Options{}), NewConn(b, Options{})
	defer reader.Close()
	defer writer.Close()

	bodies := [][]byte{{0x00}, []byte("hello world"), bytes.Repeat([]byte{0xAF}, 4096)}

	go func() {
		for _, body := range bodies {
			if err := writer.WriteFrame(body); err != nil {
				t.Errorf("WriteFrame errored: %v", err)
				return
			}
		}
	}()

	for _, body := range bodies {
		if data, err := reader.ReadFrame(); err != nil {
			t.Fatal(err)
		} else if !bytes.Equal(data, body) {
			t.Fatalf("expected %x, got %x", body, data)
		}
	}
}

func TestReadFramePartialWrites(t *testing.T) {
	c, raw := pipeConns(Options{})
	defer c.Close()

	frame := prefixed(5, []byte("abcde"))
	go func() {
		for i := range frame {
			if _, err := raw.Write(frame[i : i+1]); err != nil {
				return
			}
		}
	}()

	if data, err := c.ReadFrame(); err != nil {
		t.Fatal(err)
	} else if string(data) != "abcde" {
		t.Fatalf("unexpected frame %q", data)
	}
}

func TestReadFrameErrors(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		closed bool
		err    error
	}{
		{"eof-at-boundary", nil, true, ErrConnectionClosed},
		{"eof-in-prefix", []byte{0x00, 0x00, 0x00}, true, ErrConnectionClosed},
		{"eof-in-body", prefixed(10, []byte("abc")), true, ErrConnectionClosed},
		{"zero-length", prefixed(0, nil), false, ErrMalformedFrame},
		{"oversized", prefixed(17, nil), false, ErrMalformedFrame},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c, raw := pipeConns(Options{MaxFrameSize: 16})
			defer c.Close()

			go func() {
				if len(test.input) > 0 {
					_, _ = raw.Write(test.input)
				}
				if test.closed {
					_ = raw.Close()
				}
			}()

			if data, err := c.ReadFrame(); !errors.Is(err, test.err) {
				t.Fatalf("expected %v, got %v (data %x)", test.err, err, data)
			}
		})
	}
}

func TestReadFrameTimeout(t *testing.T) {
	c, raw := pipeConns(Options{})
	defer c.Close()
	defer raw.Close()

	if err := c.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}

	if _, err := c.ReadFrame(); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestWriteFrameErrors(t *testing.T) {
	c, raw := pipeConns(Options{MaxFrameSize: 4})
	defer raw.Close()

	if err := c.WriteFrame(nil); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}
	if err := c.WriteFrame([]byte("12345")); !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close returned %v", err)
	}
	if !c.Closed() {
		t.Fatal("Conn is not marked as closed")
	}

	if err := c.WriteFrame([]byte("1")); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("expected ErrConnectionClosed, got %v", err)
	}
}

func listen(t *testing.T) (string, net.Listener) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sock")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	return path, ln
}

func TestWriteFrameConcurrent(t *testing.T) {
	const (
		writers = 16
		frames  = 32
	)

	path, ln := listen(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		if conn, err := ln.Accept(); err == nil {
			accepted <- conn
		}
	}()

	client, err := Dial(context.Background(), path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	server := NewConn(<-accepted, Options{})
	defer server.Close()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			body := bytes.Repeat([]byte{byte(i)}, 1024+i)
			for j := 0; j < frames; j++ {
				if err := client.WriteFrame(body); err != nil {
					t.Errorf("writer %d: %v", i, err)
					return
				}
			}
		}(i)
	}

	counts := make(map[byte]int)
	for n := 0; n < writers*frames; n++ {
		data, err := server.ReadFrame()
		if err != nil {
			t.Fatal(err)
		}

		id := data[0]
		if len(data) != 1024+int(id) || !bytes.Equal(data, bytes.Repeat([]byte{id}, len(data))) {
			t.Fatalf("frame %d of writer %d is interleaved", n, id)
		}
		counts[id]++
	}

	wg.Wait()

	for i := 0; i < writers; i++ {
		if counts[byte(i)] != frames {
			t.Fatalf("writer %d: expected %d frames, got %d", i, frames, counts[byte(i)])
		}
	}
}

func TestDialMissingSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.sock")

	if _, err := Dial(context.Background(), path, Options{}); !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func TestDialWaitForSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.sock")

	lnChan := make(chan net.Listener, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		ln, err := net.Listen("unix", path)
		if err != nil {
			t.Error(err)
			close(lnChan)
			return
		}
		lnChan <- ln
	}()

	c, err := Dial(context.Background(), path, Options{WaitForSocket: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Close()

	if ln, ok := <-lnChan; ok {
		_ = ln.Close()
	}
}

func TestDialWaitForSocketTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.sock")

	start := time.Now()
	_, err := Dial(context.Background(), path, Options{WaitForSocket: 100 * time.Millisecond})
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
	if dur := time.Since(start); dur > 2*time.Second {
		t.Fatalf("waiting took %v", dur)
	}
}

func TestDialCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never.sock")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Dial(ctx, path, Options{WaitForSocket: time.Minute}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	} else if !errors.Is(err, ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func ExampleConn_WriteFrame() {
	a, b := net.Pipe()
	writer, reader := NewConn(a, Options{}), NewConn(b, Options{})
	defer writer.Close()
	defer reader.Close()

	go func() { _ = writer.WriteFrame([]byte("hello")) }()

	data, _ := reader.ReadFrame()
	fmt.Println(string(data))
	// Output: hello
}
