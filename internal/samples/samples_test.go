package samples_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"example.com/eac3fix/internal/eac3"
	"example.com/eac3fix/internal/samples"
)

func TestBuildFrameHeader(t *testing.T) {
	spec := samples.FrameSpec{Frmsiz: 0x123, StreamType: 2, SubstreamID: 5, Acmod: 7, LFE: true, ChanmapE: true, Chanmap: 0xABCD, Fill: 0x10}
	frame, err := samples.BuildFrame(spec)
	if err != nil {
		t.Fatalf("BuildFrame: %v", err)
	}
	if len(frame) != spec.FrameLen() || eac3.FrameSize(frame, 0) != len(frame) {
		t.Fatalf("frame length %d, header says %d, want %d", len(frame), eac3.FrameSize(frame, 0), spec.FrameLen())
	}
	if !bytes.HasPrefix(frame, []byte{0x0B, 0x77}) {
		t.Fatalf("missing syncword: %x", frame[:2])
	}
	checks := []struct {
		name       string
		bit, width int
		want       uint32
	}{
		{"strmtyp", 16, 2, 2},
		{"substreamid", 18, 3, 5},
		{"frmsiz", 21, 11, 0x123},
		{"acmod", 36, 3, 7},
		{"lfeon", 39, 1, 1},
		{"bsid", 40, 5, 16},
		{"chanmape", 61, 1, 1},
		{"chanmap", 62, 16, 0xABCD},
	}
	for _, c := range checks {
		if v, ok := eac3.ReadBits(frame, c.bit, c.width); !ok || v != c.want {
			t.Fatalf("%s = %#x, want %#x", c.name, v, c.want)
		}
	}
	n := len(frame)
	if got := uint16(frame[n-2])<<8 | uint16(frame[n-1]); got != eac3.AC3CRC.Checksum(frame[2:n-2], 0) {
		t.Fatalf("generated frame fails crc")
	}
}

func TestBuildFrameRejectsFrmsiz(t *testing.T) {
	if _, err := samples.BuildFrame(samples.FrameSpec{Frmsiz: 0x800}); err == nil {
		t.Fatalf("expected error for 12-bit frmsiz")
	}
	if _, err := samples.BuildStream(nil, samples.FrameSpec{Frmsiz: -1}); err == nil {
		t.Fatalf("expected error from BuildStream")
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := samples.WriteFiles(dir)
	if err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if filepath.Base(path) != samples.StreamFileName {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want, err := samples.BuildSample()
	if err != nil {
		t.Fatalf("BuildSample: %v", err)
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("written sample differs from BuildSample")
	}
	res, err := eac3.Scan(data, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Frames) != len(samples.DefaultSpecs()) || res.Mismatches() != 0 || res.Stop != eac3.StopEnd {
		t.Fatalf("sample scan: %+v", res)
	}
}
