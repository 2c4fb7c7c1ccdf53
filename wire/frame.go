// Package wire implements the fixed-size TCP command frame exchanged
// between edge nodes: a header describing up to edgedata.DataLimit
// payload slot lengths and a metadata block length, followed by the
// slots themselves and the metadata block.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/edgelink/edgenode/edgedata"
)

// Magic marks the start of every frame header.
const Magic uint32 = 0xFEEDFEED

// FormatVersion is the only version this package's ReadFrame accepts.
const FormatVersion byte = 1

// Command identifies the purpose of a frame.
type Command uint32

const (
	CmdError Command = iota
	CmdTransferData
	CmdHostInfo
	CmdCapability
)

func (c Command) String() string {
	switch c {
	case CmdError:
		return "error"
	case CmdTransferData:
		return "transfer-data"
	case CmdHostInfo:
		return "host-info"
	case CmdCapability:
		return "capability"
	default:
		return fmt.Sprintf("command(%d)", uint32(c))
	}
}

// headerSize is magic(4) + version(1) + cmd(4) + client_id(8) + num(4) +
// mem_size[16](8 each) + meta_size(8).
const headerSize = 4 + 1 + 4 + 8 + 4 + edgedata.DataLimit*8 + 8

var (
	ErrBadMagic           = errors.New("wire: magic mismatch")
	ErrUnsupportedVersion = errors.New("wire: unsupported format version")
	ErrTooManySlots       = errors.New("wire: num exceeds DataLimit")
)

// FrameHeader is the fixed-size header preceding every frame's payload.
type FrameHeader struct {
	Command  Command
	ClientID int64
	Num      uint32
	MemSize  [edgedata.DataLimit]uint64
	MetaSize uint64
}

// WriteFrame writes a header followed by the payload slots and metadata
// block for a transfer-data/host-info/capability frame. For CmdError,
// data may be nil; the frame carries zero slots and no metadata.
func WriteFrame(w io.Writer, clientID int64, cmd Command, data *edgedata.Data, meta []byte) error {
	var hdr FrameHeader
	hdr.Command = cmd
	hdr.ClientID = clientID

	var slots [][]byte
	if data != nil {
		n := data.NumSlots()
		if n > edgedata.DataLimit {
			return ErrTooManySlots
		}
		slots = make([][]byte, n)
		for i := 0; i < n; i++ {
			s, err := data.Get(i)
			if err != nil {
				return err
			}
			slots[i] = s
			hdr.MemSize[i] = uint64(len(s))
		}
		hdr.Num = uint32(n)
	}
	hdr.MetaSize = uint64(len(meta))

	buf := make([]byte, headerSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], Magic)
	off += 4
	buf[off] = FormatVersion
	off++
	binary.LittleEndian.PutUint32(buf[off:], uint32(hdr.Command))
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], uint64(hdr.ClientID))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], hdr.Num)
	off += 4
	for i := 0; i < edgedata.DataLimit; i++ {
		binary.LittleEndian.PutUint64(buf[off:], hdr.MemSize[i])
		off += 8
	}
	binary.LittleEndian.PutUint64(buf[off:], hdr.MetaSize)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("wire: write header: %w", err)
	}
	for _, s := range slots {
		if _, err := w.Write(s); err != nil {
			return fmt.Errorf("wire: write slot: %w", err)
		}
	}
	if len(meta) > 0 {
		if _, err := w.Write(meta); err != nil {
			return fmt.Errorf("wire: write metadata: %w", err)
		}
	}
	return nil
}

// ReadFrame reads a header and its declared payload into a fresh Data and
// a raw metadata block, returning the header for the caller to inspect
// (Command, ClientID). r is expected to be a *bufio.Reader, mirroring the
// message thread's framed-read pattern.
func ReadFrame(r *bufio.Reader) (FrameHeader, *edgedata.Data, []byte, error) {
	var hdr FrameHeader

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return hdr, nil, nil, err
	}

	off := 0
	magic := binary.LittleEndian.Uint32(header[off:])
	off += 4
	if magic != Magic {
		return hdr, nil, nil, ErrBadMagic
	}

	version := header[off]
	off++
	if version != FormatVersion {
		return hdr, nil, nil, ErrUnsupportedVersion
	}

	hdr.Command = Command(binary.LittleEndian.Uint32(header[off:]))
	off += 4
	hdr.ClientID = int64(binary.LittleEndian.Uint64(header[off:]))
	off += 8
	hdr.Num = binary.LittleEndian.Uint32(header[off:])
	off += 4
	if hdr.Num > edgedata.DataLimit {
		return hdr, nil, nil, ErrTooManySlots
	}
	for i := 0; i < edgedata.DataLimit; i++ {
		hdr.MemSize[i] = binary.LittleEndian.Uint64(header[off:])
		off += 8
	}
	hdr.MetaSize = binary.LittleEndian.Uint64(header[off:])

	data := edgedata.New()
	for i := uint32(0); i < hdr.Num; i++ {
		slot := make([]byte, hdr.MemSize[i])
		if _, err := io.ReadFull(r, slot); err != nil {
			return hdr, nil, nil, fmt.Errorf("wire: read slot %d: %w", i, err)
		}
		if len(slot) > 0 {
			if err := data.Add(slot); err != nil {
				return hdr, nil, nil, err
			}
		}
	}

	var meta []byte
	if hdr.MetaSize > 0 {
		meta = make([]byte, hdr.MetaSize)
		if _, err := io.ReadFull(r, meta); err != nil {
			return hdr, nil, nil, fmt.Errorf("wire: read metadata: %w", err)
		}
	}

	return hdr, data, meta, nil
}
