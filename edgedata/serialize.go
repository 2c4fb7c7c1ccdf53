package edgedata

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sentinel marks the start of a serialized Data blob, letting a receiver
// validate with a single check that an arbitrary buffer is well-formed
// before attempting to reconstruct it.
const Sentinel uint32 = 0xEDDAEDDA

// FormatVersion is the only version this package's Deserialize accepts.
// A future wire change bumps this rather than overloading Sentinel.
const FormatVersion byte = 1

// headerSize is sentinel(4) + version(1) + num(4) + slotLen[16](8 each) + metaLen(8).
const headerSize = 4 + 1 + 4 + 16*8 + 8

var (
	ErrTruncated           = errors.New("edgedata: buffer too short")
	ErrBadSentinel         = errors.New("edgedata: sentinel mismatch")
	ErrUnsupportedVersion  = errors.New("edgedata: unsupported format version")
	ErrLengthMismatch      = errors.New("edgedata: declared lengths do not match buffer size")
	ErrTooManySlots        = errors.New("edgedata: num exceeds DataLimit")
)

// Serialize produces a single byte blob: a fixed header, the slots'
// payloads concatenated in order, then a metadata block. It always
// succeeds, including for a Data with zero slots and no metadata.
func (d *Data) Serialize() ([]byte, error) {
	if len(d.slots) > DataLimit {
		return nil, ErrTooManySlots
	}

	metaBlock := encodeMetadata(&d.meta)

	total := headerSize
	for _, s := range d.slots {
		total += len(s)
	}
	total += len(metaBlock)

	buf := make([]byte, total)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], Sentinel)
	off += 4
	buf[off] = FormatVersion
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(d.slots)))
	off += 4

	for i := 0; i < DataLimit; i++ {
		var l uint64
		if i < len(d.slots) {
			l = uint64(len(d.slots[i]))
		}
		binary.LittleEndian.PutUint64(buf[off:], l)
		off += 8
	}

	binary.LittleEndian.PutUint64(buf[off:], uint64(len(metaBlock)))
	off += 8

	for _, s := range d.slots {
		off += copy(buf[off:], s)
	}
	copy(buf[off:], metaBlock)

	return buf, nil
}

// Deserialize validates the sentinel, format version, and total length,
// then reconstructs a Data with freshly allocated slots and metadata.
func Deserialize(buf []byte) (*Data, error) {
	if len(buf) < headerSize {
		return nil, ErrTruncated
	}

	off := 0
	sentinel := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if sentinel != Sentinel {
		return nil, ErrBadSentinel
	}

	version := buf[off]
	off++
	if version != FormatVersion {
		return nil, ErrUnsupportedVersion
	}

	num := binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if num > DataLimit {
		return nil, ErrTooManySlots
	}

	var slotLens [DataLimit]uint64
	for i := 0; i < DataLimit; i++ {
		slotLens[i] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}

	metaLen := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	var slotTotal uint64
	for i := 0; i < int(num); i++ {
		slotTotal += slotLens[i]
	}

	wantLen := uint64(headerSize) + slotTotal + metaLen
	if wantLen != uint64(len(buf)) {
		return nil, ErrLengthMismatch
	}

	out := &Data{slots: make([][]byte, 0, num)}
	for i := 0; i < int(num); i++ {
		l := int(slotLens[i])
		slot := make([]byte, l)
		copy(slot, buf[off:off+l])
		off += l
		out.slots = append(out.slots, slot)
	}

	meta, err := decodeMetadata(buf[off : off+int(metaLen)])
	if err != nil {
		return nil, err
	}
	out.meta = meta

	return out, nil
}

// EncodeMetadataBlock produces the "count:u32 then key\0value\0 pairs"
// block used both by Serialize and by wire.WriteFrame for a
// transfer-data frame's trailing metadata section.
func EncodeMetadataBlock(m *Metadata) []byte {
	return encodeMetadata(m)
}

// DecodeMetadataBlock parses a block produced by EncodeMetadataBlock.
func DecodeMetadataBlock(block []byte) (Metadata, error) {
	return decodeMetadata(block)
}

// encodeMetadata produces the "count:u32 then key\0value\0 pairs" block.
func encodeMetadata(m *Metadata) []byte {
	var buf []byte
	countOff := make([]byte, 4)
	binary.LittleEndian.PutUint32(countOff, uint32(m.Len()))
	buf = append(buf, countOff...)

	m.Each(func(key, value string) {
		buf = append(buf, key...)
		buf = append(buf, 0)
		buf = append(buf, value...)
		buf = append(buf, 0)
	})

	return buf
}

func decodeMetadata(block []byte) (Metadata, error) {
	var m Metadata
	if len(block) == 0 {
		return m, nil
	}
	if len(block) < 4 {
		return m, ErrTruncated
	}

	count := binary.LittleEndian.Uint32(block)
	off := 4

	for i := uint32(0); i < count; i++ {
		key, n, err := readCString(block, off)
		if err != nil {
			return m, err
		}
		off += n

		value, n, err := readCString(block, off)
		if err != nil {
			return m, err
		}
		off += n

		m.Set(key, value)
	}

	return m, nil
}

func readCString(buf []byte, off int) (string, int, error) {
	for i := off; i < len(buf); i++ {
		if buf[i] == 0 {
			return string(buf[off:i]), i - off + 1, nil
		}
	}
	return "", 0, fmt.Errorf("edgedata: unterminated metadata string")
}
