package edgedata

import (
	"bytes"
	"testing"
)

func TestDataLimitBoundary(t *testing.T) {
	d := New()
	for i := 0; i < DataLimit; i++ {
		if err := d.Add([]byte{byte(i)}); err != nil {
			t.Fatalf("Add slot %d: %v", i, err)
		}
	}
	if err := d.Add([]byte{0xff}); err != ErrDataLimit {
		t.Fatalf("expected ErrDataLimit on slot %d, got %v", DataLimit, err)
	}
	if err := New().Add(nil); err != ErrEmptySlot {
		t.Fatalf("expected ErrEmptySlot for empty payload, got %v", err)
	}
}

func TestGetOutOfRange(t *testing.T) {
	d := New()
	d.Add([]byte("x"))
	if _, err := d.Get(-1); err != ErrSlotRange {
		t.Errorf("expected ErrSlotRange for index -1, got %v", err)
	}
	if _, err := d.Get(1); err != ErrSlotRange {
		t.Errorf("expected ErrSlotRange for index 1, got %v", err)
	}
}

func TestCopyIsDeepAndIndependent(t *testing.T) {
	d := New()
	slot := []byte("hello")
	d.Add(slot)
	d.SetInfo("k", "v")

	c := d.Copy()

	slot[0] = 'H'
	d.SetInfo("k", "changed")

	got, _ := c.Get(0)
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("copy's slot mutated alongside original: %q", got)
	}
	v, _ := c.GetInfo("k")
	if v != "v" {
		t.Errorf("copy's metadata mutated alongside original: %q", v)
	}
}

func TestMetadataLastWriteWinsCaseInsensitive(t *testing.T) {
	d := New()
	d.SetInfo("Content-Type", "text/plain")
	d.SetInfo("content-type", "application/json")

	if d.Metadata().Len() != 1 {
		t.Fatalf("expected 1 entry after case-insensitive overwrite, got %d", d.Metadata().Len())
	}
	v, ok := d.GetInfo("CONTENT-TYPE")
	if !ok || v != "application/json" {
		t.Errorf("expected last-write-wins value, got %q (ok=%v)", v, ok)
	}

	var gotKey string
	d.Metadata().Each(func(key, value string) {
		gotKey = key
	})
	if gotKey != "Content-Type" {
		t.Errorf("expected original key casing preserved, got %q", gotKey)
	}
}
