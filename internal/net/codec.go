package net

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Flags carries the routing bits spec.md §4.1's frame header reserves
// alongside the length field.
type Flags uint16

const (
	// FlagNone marks an ordinary frame, processed under whatever cipher
	// key the connection currently has installed.
	FlagNone Flags = 0
	// FlagPlaintext marks a frame that must bypass the cipher entirely —
	// only legal during the unauth phase, before any key exists.
	FlagPlaintext Flags = 1 << 0
)

// MaxFramePayload bounds a single frame's payload, matching the 16-bit
// length field's ceiling minus the header.
const MaxFramePayload = 65535 - 4

// ReadFrame reads one frame from r. Wire format (spec.md §4.1 "a small
// header (2-4 bytes) carries total length and a routing flag"):
// [2B LE total length including header][2B LE flags][payload].
func ReadFrame(r io.Reader) (Flags, []byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("read frame header: %w", err)
	}

	totalLen := int(binary.LittleEndian.Uint16(header[0:2]))
	flags := Flags(binary.LittleEndian.Uint16(header[2:4]))
	payloadLen := totalLen - 4
	if payloadLen < 0 || payloadLen > MaxFramePayload {
		return 0, nil, fmt.Errorf("invalid frame length: %d", totalLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read frame payload (%d bytes): %w", payloadLen, err)
	}
	return flags, payload, nil
}

// WriteFrame writes one frame to w.
func WriteFrame(w io.Writer, flags Flags, data []byte) error {
	if len(data) > MaxFramePayload {
		return fmt.Errorf("frame payload too large: %d bytes", len(data))
	}
	totalLen := len(data) + 4
	var header [4]byte
	binary.LittleEndian.PutUint16(header[0:2], uint16(totalLen))
	binary.LittleEndian.PutUint16(header[2:4], uint16(flags))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}
