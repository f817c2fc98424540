package eac3

import "errors"

const (
	syncByte0 = 0x0B
	syncByte1 = 0x77

	// minRemaining is the number of bytes that must follow the cursor
	// before another frame header is considered.
	minRemaining = 5

	// ResyncWindow bounds the forward search for a lost syncword.
	ResyncWindow = 4096

	// Bit positions relative to the frame start.
	chanmapeBit  = 61
	chanmapBit   = 62
	chanmapBits  = 16
	crcTrailLen  = 2
	syncwordLen  = 2
	headerWindow = 7 // first byte touched by the channel-map patch
	headerSpan   = 3 // bytes 7..9 cover bits 61..77

	// FixedChanmap is the channel map forced into every frame, written as
	// chanmapHi at bit 62 and chanmapLo at bit 70.
	FixedChanmap uint16 = chanmapHi<<8 | chanmapLo
	chanmapHi           = 0b01101000
	chanmapLo           = 0x00
)

var syncword = []byte{syncByte0, syncByte1}

var (
	// ErrNoSync is the only fatal condition: the buffer contains no syncword.
	ErrNoSync = errors.New("no E-AC3 syncword found")
	// ErrTruncatedFrame reports a declared frame length running past the end
	// of the buffer. The pass stops but keeps every frame patched so far.
	ErrTruncatedFrame = errors.New("truncated frame")
	// ErrResyncExhausted reports a lost syncword that did not reappear within
	// ResyncWindow bytes.
	ErrResyncExhausted = errors.New("syncword lost and not recovered")
)

// StopReason records why a pass over the buffer ended.
type StopReason int

const (
	StopEnd StopReason = iota
	StopTruncated
	StopResyncExhausted
)

func (s StopReason) String() string {
	switch s {
	case StopEnd:
		return "end"
	case StopTruncated:
		return "truncated-frame"
	case StopResyncExhausted:
		return "resync-exhausted"
	default:
		return "unknown"
	}
}

// Err maps a non-fatal stop to its sentinel error, or nil for StopEnd.
func (s StopReason) Err() error {
	switch s {
	case StopTruncated:
		return ErrTruncatedFrame
	case StopResyncExhausted:
		return ErrResyncExhausted
	default:
		return nil
	}
}

// Notifier receives line-level messages and per-frame progress from a pass.
// Implementations decide how they are rendered.
type Notifier interface {
	Info(msg string)
	OK(msg string)
	Warn(msg string)
	Err(msg string)
	Progress(frames int)
}

type discard struct{}

func (discard) Info(string)  {}
func (discard) OK(string)    {}
func (discard) Warn(string)  {}
func (discard) Err(string)   {}
func (discard) Progress(int) {}

// FrameEdit captures the bytes a patch changed in one frame. Offsets are
// relative to Result.Data.
type FrameEdit struct {
	Index        int
	Offset       int
	Length       int
	HeaderOffset int
	HeaderBefore []byte
	HeaderAfter  []byte
	CRCOffset    int
	CRCBefore    []byte
	CRCAfter     []byte
}

// Result is the outcome of a completed pass.
type Result struct {
	// Data is the patched buffer with any leading garbage sliced off. It
	// shares memory with the input.
	Data    []byte
	Frames  int
	Trimmed int
	Resyncs int
	Stop    StopReason
	// StopOffset is the cursor position at which a non-fatal stop happened.
	StopOffset int
	Edits      []FrameEdit
}

// Err returns the sentinel for a non-fatal stop, or nil.
func (r Result) Err() error {
	return r.Stop.Err()
}
