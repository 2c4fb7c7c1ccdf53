package wire

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/edgelink/edgenode/edgedata"
)

func TestWriteReadFrameTransferData(t *testing.T) {
	d := edgedata.New()
	d.Add([]byte("payload-one"))
	d.Add([]byte("payload-two"))
	d.SetInfo("origin", "node-9")

	meta := edgedata.EncodeMetadataBlock(d.Metadata())

	var buf bytes.Buffer
	if err := WriteFrame(&buf, 12345, CmdTransferData, d, meta); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	hdr, got, gotMeta, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	if hdr.Command != CmdTransferData {
		t.Errorf("expected CmdTransferData, got %v", hdr.Command)
	}
	if hdr.ClientID != 12345 {
		t.Errorf("expected client id 12345, got %d", hdr.ClientID)
	}
	if got.NumSlots() != 2 {
		t.Fatalf("expected 2 slots, got %d", got.NumSlots())
	}
	s0, _ := got.Get(0)
	s1, _ := got.Get(1)
	if !bytes.Equal(s0, []byte("payload-one")) || !bytes.Equal(s1, []byte("payload-two")) {
		t.Errorf("slot contents mismatch: %q %q", s0, s1)
	}

	gotDecoded, err := edgedata.DecodeMetadataBlock(gotMeta)
	if err != nil {
		t.Fatalf("DecodeMetadataBlock: %v", err)
	}
	if v, ok := gotDecoded.Get("origin"); !ok || v != "node-9" {
		t.Errorf("expected metadata origin=node-9, got %q (ok=%v)", v, ok)
	}
}

func TestWriteReadFrameCapability(t *testing.T) {
	var buf bytes.Buffer
	caps := edgedata.New()
	caps.Add([]byte("caps-blob\x00"))

	if err := WriteFrame(&buf, 1, CmdCapability, caps, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	hdr, got, meta, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if hdr.Command != CmdCapability {
		t.Errorf("expected CmdCapability, got %v", hdr.Command)
	}
	if len(meta) != 0 {
		t.Errorf("expected no metadata block, got %d bytes", len(meta))
	}
	s0, _ := got.Get(0)
	if !bytes.Equal(s0, []byte("caps-blob\x00")) {
		t.Errorf("capability payload mismatch: %q", s0)
	}
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, 1, CmdError, nil, nil)
	b := buf.Bytes()
	b[0] ^= 0xff

	if _, _, _, err := ReadFrame(bufio.NewReader(bytes.NewReader(b))); err != ErrBadMagic {
		t.Errorf("expected ErrBadMagic, got %v", err)
	}
}

func TestReadFrameRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	WriteFrame(&buf, 1, CmdError, nil, nil)
	b := buf.Bytes()
	b[4] = 7

	if _, _, _, err := ReadFrame(bufio.NewReader(bytes.NewReader(b))); err != ErrUnsupportedVersion {
		t.Errorf("expected ErrUnsupportedVersion, got %v", err)
	}
}

func TestWriteFrameErrorHasNoPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, 99, CmdError, nil, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	hdr, data, meta, err := ReadFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if hdr.Command != CmdError || hdr.ClientID != 99 {
		t.Errorf("unexpected header: %+v", hdr)
	}
	if data.NumSlots() != 0 || len(meta) != 0 {
		t.Errorf("expected empty payload for error frame, got %d slots, %d meta bytes", data.NumSlots(), len(meta))
	}
}
