// Package edgedata implements the container used to ferry one logical
// frame of raw data plus metadata between edge nodes: Data holds up to
// DataLimit raw byte slots and a Metadata list, and can serialize itself
// to a single self-describing byte blob and back.
package edgedata

import "errors"

// DataLimit bounds the number of raw slots a Data can hold. The original
// C header defined this constant two different ways (16 and 256); 16 is
// the value this implementation carries forward.
const DataLimit = 16

var (
	// ErrDataLimit is returned by Add when the slot count is already at DataLimit.
	ErrDataLimit = errors.New("edgedata: slot limit reached")
	// ErrEmptySlot is returned by Add when given a zero-length slot.
	ErrEmptySlot = errors.New("edgedata: slot payload is empty")
	// ErrSlotRange is returned by Get for an out-of-range index.
	ErrSlotRange = errors.New("edgedata: slot index out of range")
)

// Data is a container for up to DataLimit raw byte slots plus a Metadata
// list. The zero value is ready to use.
type Data struct {
	slots [][]byte
	meta  Metadata
}

// New returns an empty Data.
func New() *Data {
	return &Data{}
}

// Add appends a slot. It fails if the slot limit has been reached or the
// payload is empty; b is retained by reference, matching the library's
// convention that a Data's slots are not copied until Copy is called.
func (d *Data) Add(b []byte) error {
	if len(d.slots) >= DataLimit {
		return ErrDataLimit
	}
	if len(b) == 0 {
		return ErrEmptySlot
	}
	d.slots = append(d.slots, b)
	return nil
}

// Get returns a non-owning view of slot i. Callers must not mutate the
// returned slice's contents through a reference expected to survive past
// the Data's lifetime without calling Copy first.
func (d *Data) Get(i int) ([]byte, error) {
	if i < 0 || i >= len(d.slots) {
		return nil, ErrSlotRange
	}
	return d.slots[i], nil
}

// NumSlots returns the number of slots currently held.
func (d *Data) NumSlots() int {
	return len(d.slots)
}

// SetInfo sets a metadata key/value pair. See Metadata for ordering and
// case-sensitivity rules.
func (d *Data) SetInfo(key, value string) {
	d.meta.Set(key, value)
}

// GetInfo returns the value for key, and whether it was present.
func (d *Data) GetInfo(key string) (string, bool) {
	return d.meta.Get(key)
}

// ClearInfo removes all metadata entries.
func (d *Data) ClearInfo() {
	d.meta.Clear()
}

// Metadata returns the underlying metadata list for iteration.
func (d *Data) Metadata() *Metadata {
	return &d.meta
}

// Copy deep-copies every slot and the metadata list, producing a Data
// wholly independent of the original.
func (d *Data) Copy() *Data {
	out := &Data{
		slots: make([][]byte, len(d.slots)),
		meta:  d.meta.clone(),
	}
	for i, s := range d.slots {
		out.slots[i] = append([]byte(nil), s...)
	}
	return out
}
