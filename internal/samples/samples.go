package samples

import (
	"fmt"
	"os"
	"path/filepath"

	"example.com/eac3fix/internal/eac3"
)

const (
	// StreamFileName is the name WriteFiles uses for the sample stream.
	StreamFileName = "sample.eac3"

	bsidEAC3     = 16
	dialnormZero = 31
)

// FrameSpec describes a synthetic E-AC3 frame. Frame length in bytes is
// 2*Frmsiz + 2.
type FrameSpec struct {
	Frmsiz      int
	StreamType  uint8
	SubstreamID uint8
	Acmod       uint8
	LFE         bool
	ChanmapE    bool
	Chanmap     uint16
	// Fill seeds the payload bytes; byte k of the payload is Fill+k.
	Fill byte
	// BadCRC leaves the trailer inverted so the frame fails verification.
	BadCRC bool
}

// FrameLen returns the encoded frame length in bytes.
func (s FrameSpec) FrameLen() int {
	return 2*s.Frmsiz + 2
}

// BuildFrame renders spec into a frame with a valid trailing CRC (unless
// BadCRC is set).
func BuildFrame(spec FrameSpec) ([]byte, error) {
	if spec.Frmsiz < 0 || spec.Frmsiz > 0x7FF {
		return nil, fmt.Errorf("frmsiz %d out of range", spec.Frmsiz)
	}
	n := spec.FrameLen()
	frame := make([]byte, n)
	for k := 4; k < n; k++ {
		frame[k] = spec.Fill + byte(k-4)
	}
	frame[0] = 0x0B
	frame[1] = 0x77
	if n > 2 {
		frame[2] = (spec.StreamType&0x03)<<6 | (spec.SubstreamID&0x07)<<3 | byte(spec.Frmsiz>>8)&0x07
	}
	if n > 3 {
		frame[3] = byte(spec.Frmsiz)
	}
	if n > 4 {
		// fscod=0 (48 kHz), numblkscod=3 (6 blocks)
		frame[4] = 0x03<<4 | (spec.Acmod&0x07)<<1
		if spec.LFE {
			frame[4] |= 0x01
		}
	}
	if n > 5 {
		frame[5] = bsidEAC3<<3 | dialnormZero>>2
	}
	if n > 6 {
		// low dialnorm bits, compre=0
		frame[6] = (dialnormZero & 0x03) << 6
	}
	var chanmape uint8
	if spec.ChanmapE {
		chanmape = 1
	}
	eac3.SetBit(frame, chanmape, 61)
	eac3.SetByteAtBit(frame, byte(spec.Chanmap>>8), 62)
	eac3.SetByteAtBit(frame, byte(spec.Chanmap), 70)

	if n >= 4 {
		crc := eac3.AC3CRC.Checksum(frame[2:n-2], 0)
		if spec.BadCRC {
			crc = ^crc
		}
		frame[n-2] = byte(crc >> 8)
		frame[n-1] = byte(crc)
	}
	return frame, nil
}

// BuildStream concatenates garbage with the rendered frames.
func BuildStream(garbage []byte, specs ...FrameSpec) ([]byte, error) {
	out := append([]byte(nil), garbage...)
	for i, spec := range specs {
		frame, err := BuildFrame(spec)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		out = append(out, frame...)
	}
	return out, nil
}

// DefaultSpecs is the deterministic frame sequence of the sample stream: a
// 5.1 independent substream with no channel map, followed by two frames with
// an unrelated map that the patcher overwrites.
func DefaultSpecs() []FrameSpec {
	return []FrameSpec{
		{Frmsiz: 63, Acmod: 7, LFE: true, Fill: 0x10},
		{Frmsiz: 63, Acmod: 7, LFE: true, ChanmapE: true, Chanmap: 0xF800, Fill: 0x20},
		{Frmsiz: 31, StreamType: 1, SubstreamID: 0, Acmod: 2, ChanmapE: true, Chanmap: 0x0400, Fill: 0x30},
	}
}

// BuildSample constructs the sample stream: five bytes of garbage ahead of
// the DefaultSpecs frames.
func BuildSample() ([]byte, error) {
	return BuildStream([]byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA}, DefaultSpecs()...)
}

// WriteFiles writes the sample stream into dir and returns its path.
func WriteFiles(dir string) (string, error) {
	data, err := BuildSample()
	if err != nil {
		return "", fmt.Errorf("build sample: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, StreamFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
