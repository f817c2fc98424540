package eac3

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"example.com/eac3fix/internal/common"
)

// DefaultOutputSuffix replaces the input extension when naming the output.
const DefaultOutputSuffix = ".patched.eac3"

// Options tunes a Patcher. The zero value is usable.
type Options struct {
	// Notifier receives messages and progress. Nil discards them.
	Notifier Notifier
	// Metrics, when set, accumulates frame, byte and resync counts.
	Metrics *common.Metrics
	// Table overrides the checksum table. Nil selects AC3CRC.
	Table *CRCTable
	// RecordEdits captures before/after bytes for every patched frame.
	RecordEdits bool
}

// Patcher rewrites the channel map of every frame in an E-AC3 elementary
// stream and regenerates the frame CRCs. A Patcher holds no per-buffer state
// and may be reused; concurrent use is safe as long as Metrics is.
type Patcher struct {
	notify  Notifier
	metrics *common.Metrics
	table   *CRCTable
	record  bool
}

// NewPatcher returns a Patcher configured by opts.
func NewPatcher(opts Options) *Patcher {
	p := &Patcher{
		notify:  opts.Notifier,
		metrics: opts.Metrics,
		table:   opts.Table,
		record:  opts.RecordEdits,
	}
	if p.notify == nil {
		p.notify = discard{}
	}
	if p.table == nil {
		p.table = AC3CRC
	}
	return p
}

// Patch runs a single pass over buf with default options.
func Patch(buf []byte, n Notifier) (Result, error) {
	return NewPatcher(Options{Notifier: n}).Patch(buf)
}

// FindSync returns the offset of the first syncword at or after from, or -1.
func FindSync(buf []byte, from int) int {
	if from < 0 {
		from = 0
	}
	if from >= len(buf) {
		return -1
	}
	j := bytes.Index(buf[from:], syncword)
	if j < 0 {
		return -1
	}
	return from + j
}

// FrameSize decodes the 11-bit frmsiz field of the header starting at i and
// returns the frame length in bytes (2*frmsiz + 2).
func FrameSize(buf []byte, i int) int {
	frmsiz := int(buf[i+2]&0x07)<<8 | int(buf[i+3])
	return 2*frmsiz + 2
}

// Patch mutates buf in place and returns the patched view. ErrNoSync is the
// only error; truncated or unrecoverable tails end the pass early and are
// reported through Result.Stop.
func (p *Patcher) Patch(buf []byte) (Result, error) {
	var res Result
	if p.metrics != nil {
		p.metrics.SetTotalBytes(int64(len(buf)))
	}

	start := FindSync(buf, 0)
	if start < 0 {
		return res, ErrNoSync
	}
	if start > 0 {
		p.notify.Warn(fmt.Sprintf("Trimmed %d bytes", start))
		common.Logf("trimmed %d leading bytes before first syncword", start)
		buf = buf[start:]
		res.Trimmed = start
		if p.metrics != nil {
			p.metrics.AddTrimmed(int64(start))
		}
	}
	res.Data = buf

	total := len(buf)
	i := 0
	for i+minRemaining-1 < total {
		if buf[i] != syncByte0 || buf[i+1] != syncByte1 {
			limit := i + ResyncWindow
			if limit > total {
				limit = total
			}
			j := -1
			if i+1 < limit {
				if k := bytes.Index(buf[i+1:limit], syncword); k >= 0 {
					j = i + 1 + k
				}
			}
			if j < 0 {
				common.Logf("resync failed at offset %d", i+res.Trimmed)
				p.notify.Warn(fmt.Sprintf("Sync lost at offset %d, no syncword within %d bytes", i, ResyncWindow))
				res.Stop = StopResyncExhausted
				res.StopOffset = i
				break
			}
			common.Logf("resync at offset %d, new offset %d", i, j)
			res.Resyncs++
			if p.metrics != nil {
				p.metrics.IncResync()
				p.metrics.AddBytes(int64(j - i))
			}
			i = j
			continue
		}

		frameLen := FrameSize(buf, i)
		frameEnd := i + frameLen
		if frameEnd > total {
			p.notify.Warn("Truncated frame")
			common.Logf("truncated frame at offset %d: length %d, %d bytes available", i, frameLen, total-i)
			res.Stop = StopTruncated
			res.StopOffset = i
			break
		}

		var edit FrameEdit
		if p.record {
			edit = FrameEdit{
				Index:        res.Frames,
				Offset:       i,
				Length:       frameLen,
				HeaderOffset: i + headerWindow,
				HeaderBefore: snapshot(buf, i+headerWindow, headerSpan),
				CRCOffset:    frameEnd - crcTrailLen,
			}
		}

		patchHeader(buf, i)
		if p.record {
			edit.HeaderAfter = snapshot(buf, i+headerWindow, headerSpan)
			edit.CRCBefore = snapshot(buf, frameEnd-crcTrailLen, crcTrailLen)
		}
		p.writeCRC(buf, i, frameEnd)
		if p.record {
			edit.CRCAfter = snapshot(buf, frameEnd-crcTrailLen, crcTrailLen)
			res.Edits = append(res.Edits, edit)
		}

		res.Frames++
		if p.metrics != nil {
			p.metrics.AddFrame(int64(frameLen))
		}
		p.notify.Progress(res.Frames)
		i = frameEnd
	}
	return res, nil
}

// patchHeader forces the channel map of the frame starting at i: the
// chanmape flag (bit 61) is set and the 16-bit map at bits 62..77 is
// overwritten with FixedChanmap.
func patchHeader(buf []byte, i int) {
	bitBase := i * 8
	if GetBit(buf, bitBase+chanmapeBit) == 0 {
		SetBit(buf, 1, bitBase+chanmapeBit)
	}
	SetByteAtBit(buf, chanmapHi, bitBase+chanmapBit)
	SetByteAtBit(buf, chanmapLo, bitBase+chanmapBit+8)
}

// writeCRC regenerates the trailing CRC of the frame [i, frameEnd),
// most significant byte first.
func (p *Patcher) writeCRC(buf []byte, i, frameEnd int) {
	crc := p.table.Checksum(crcRange(buf, i, frameEnd), 0)
	buf[frameEnd-2] = byte(crc >> 8)
	buf[frameEnd-1] = byte(crc)
}

// crcRange is the span covered by the frame CRC: everything after the
// syncword and before the CRC itself. Frames too short to hold both yield an
// empty span.
func crcRange(buf []byte, i, frameEnd int) []byte {
	lo, hi := i+syncwordLen, frameEnd-crcTrailLen
	if hi <= lo {
		return nil
	}
	return buf[lo:hi]
}

// snapshot copies up to n bytes at off, clipped to buf.
func snapshot(buf []byte, off, n int) []byte {
	if off < 0 || off >= len(buf) {
		return nil
	}
	end := off + n
	if end > len(buf) {
		end = len(buf)
	}
	out := make([]byte, end-off)
	copy(out, buf[off:end])
	return out
}

// OutputPath derives the patched file name: the input extension is replaced
// by suffix, or DefaultOutputSuffix when suffix is empty.
func OutputPath(input, suffix string) string {
	if suffix == "" {
		suffix = DefaultOutputSuffix
	}
	ext := filepath.Ext(input)
	if ext == filepath.Base(input) {
		// dotfile with no further extension
		ext = ""
	}
	base := strings.TrimSuffix(input, ext)
	return base + suffix
}
