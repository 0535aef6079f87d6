// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadFrame blocks until a whole frame was read and returns its body.
//
// A stream ending at a frame boundary or within a frame results in
// ErrConnectionClosed. A zero or oversized length prefix is ErrMalformedFrame;
// the stream cannot be resynchronised afterwards.
func (c *Conn) ReadFrame() ([]byte, error) {
	c.readMutex.Lock()
	defer c.readMutex.Unlock()

	var prefix [LengthPrefixSize]byte
	if _, err := io.ReadFull(c.conn, prefix[:]); err != nil {
		return nil, c.classify("read length prefix", err)
	}

	length := binary.BigEndian.Uint64(prefix[:])
	if length == 0 {
		return nil, fmt.Errorf("%w: zero length", ErrMalformedFrame)
	} else if length > c.maxFrameSize {
		return nil, fmt.Errorf("%w: length %d exceeds maximum of %d", ErrMalformedFrame, length, c.maxFrameSize)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, c.classify("read frame body", err)
	}

	c.logger.WithField("length", length).Debug("Read frame")
	return body, nil
}

// WriteFrame writes the length prefix and the body without being interleaved
// by concurrent writers.
func (c *Conn) WriteFrame(body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: zero length", ErrMalformedFrame)
	} else if uint64(len(body)) > c.maxFrameSize {
		return fmt.Errorf("%w: length %d exceeds maximum of %d", ErrMalformedFrame, len(body), c.maxFrameSize)
	}

	frame := make([]byte, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint64(frame[:LengthPrefixSize], uint64(len(body)))
	copy(frame[LengthPrefixSize:], body)

	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("%w: write frame", ErrConnectionClosed)
	}

	// net.Conn.Write either writes everything or returns an error.
	if _, err := c.conn.Write(frame); err != nil {
		return c.classify("write frame", err)
	}

	c.logger.WithField("length", len(body)).Debug("Wrote frame")
	return nil
}
