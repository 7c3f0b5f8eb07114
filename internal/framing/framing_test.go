package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	payloads := [][]byte{
		nil,
		{},
		[]byte("x"),
		[]byte("hello worker"),
		bytes.Repeat([]byte{0xAB}, 1<<16),
	}
	for _, p := range payloads {
		var buf bytes.Buffer
		if err := WriteMessage(&buf, p); err != nil {
			t.Fatalf("write: %v", err)
		}
		got, err := ReadMessage(&buf, 0)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if !bytes.Equal(got, p) {
			t.Fatalf("round trip mismatch: wrote %d bytes, read %d", len(p), len(got))
		}
	}
}

func TestHeaderIsBigEndian(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, []byte("abcd")); err != nil {
		t.Fatalf("write: %v", err)
	}
	hdr := buf.Bytes()[:4]
	if n := binary.BigEndian.Uint32(hdr); n != 4 {
		t.Fatalf("expected big-endian length 4, got %d (header % x)", n, hdr)
	}
}

func TestShortHeader(t *testing.T) {
	r := bytes.NewReader([]byte{0x00, 0x00})
	if _, err := ReadMessage(r, 0); err == nil {
		t.Fatal("expected error on truncated header")
	}
}

func TestShortPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, []byte("full payload")); err != nil {
		t.Fatalf("write: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-3]
	_, err := ReadMessage(bytes.NewReader(truncated), 0)
	if err == nil {
		t.Fatal("expected error on truncated payload")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestMessageTooLarge(t *testing.T) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 1<<20)
	_, err := ReadMessage(bytes.NewReader(hdr[:]), 1024)
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestEmptyMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() != 4 {
		t.Fatalf("empty message should be header only, got %d bytes", buf.Len())
	}
	got, err := ReadMessage(&buf, 0)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(got))
	}
}
