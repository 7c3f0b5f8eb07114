// Package framing implements the length-prefixed message framing used on the
// worker IPC socket: a 4-byte big-endian payload length followed by the
// payload bytes. Payloads are opaque; callers own serialization.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// headerSize is the fixed length prefix in bytes.
const headerSize = 4

// DefaultMaxMessageSize bounds a single framed payload. Large enough for any
// realistic tensor batch; small enough that a corrupt length field cannot ask
// for gigabytes.
const DefaultMaxMessageSize = 1 << 30

// ErrMessageTooLarge is returned by ReadMessage when the length prefix
// exceeds the configured bound.
var ErrMessageTooLarge = errors.New("framing: message exceeds size limit")

// WriteMessage frames payload onto w. The header and payload are written as a
// single buffer so a partial header is never left on the wire by this layer.
// Any error means the connection is no longer usable for framing.
func WriteMessage(w io.Writer, payload []byte) error {
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf[:headerSize], uint32(len(payload)))
	copy(buf[headerSize:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("framing: write: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message from r, enforcing maxSize (0 means
// DefaultMaxMessageSize). A short read on the header or the payload is a
// transport failure; the caller must discard the connection.
func ReadMessage(r io.Reader, maxSize uint32) ([]byte, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("framing: read header: %w", err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("framing: read payload: %w", err)
	}
	return payload, nil
}
