package edgedata

import (
	"bytes"
	"testing"
)

func TestSerializeRoundTrip(t *testing.T) {
	d := New()
	d.Add([]byte("first"))
	d.Add([]byte("second"))
	d.SetInfo("origin", "node-7")
	d.SetInfo("seq", "42")

	blob, err := d.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	got, err := Deserialize(blob)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if got.NumSlots() != 2 {
		t.Fatalf("expected 2 slots, got %d", got.NumSlots())
	}
	s0, _ := got.Get(0)
	s1, _ := got.Get(1)
	if !bytes.Equal(s0, []byte("first")) || !bytes.Equal(s1, []byte("second")) {
		t.Errorf("slot contents not preserved: %q %q", s0, s1)
	}
	if !got.Metadata().Equal(d.Metadata()) {
		t.Errorf("metadata not preserved across round trip")
	}
}

func TestSerializeRoundTripEmpty(t *testing.T) {
	d := New()
	blob, err := d.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(blob)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.NumSlots() != 0 || got.Metadata().Len() != 0 {
		t.Errorf("expected empty Data round trip, got %d slots, %d metadata entries", got.NumSlots(), got.Metadata().Len())
	}
}

func TestDeserializeRejectsBadSentinel(t *testing.T) {
	d := New()
	d.Add([]byte("x"))
	blob, _ := d.Serialize()
	blob[0] ^= 0xff

	if _, err := Deserialize(blob); err != ErrBadSentinel {
		t.Errorf("expected ErrBadSentinel, got %v", err)
	}
}

func TestDeserializeRejectsUnsupportedVersion(t *testing.T) {
	d := New()
	blob, _ := d.Serialize()
	blob[4] = 9

	if _, err := Deserialize(blob); err != ErrUnsupportedVersion {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestDeserializeRejectsTruncated(t *testing.T) {
	d := New()
	d.Add([]byte("hello"))
	blob, _ := d.Serialize()

	if _, err := Deserialize(blob[:len(blob)-2]); err != ErrLengthMismatch {
		t.Errorf("expected ErrLengthMismatch for truncated blob, got %v", err)
	}
	if _, err := Deserialize(blob[:3]); err != ErrTruncated {
		t.Errorf("expected ErrTruncated for short header, got %v", err)
	}
}
