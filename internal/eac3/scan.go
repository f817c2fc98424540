package eac3

// FrameInfo describes one frame found by Scan.
type FrameInfo struct {
	Index       int    `json:"index"`
	Offset      int    `json:"offset"`
	Length      int    `json:"length"`
	StreamType  uint8  `json:"strmtyp"`
	SubstreamID uint8  `json:"substreamid"`
	BSID        uint8  `json:"bsid"`
	ChanmapE    bool   `json:"chanmape"`
	Chanmap     uint16 `json:"chanmap"`
	StoredCRC   uint16 `json:"storedCrc"`
	ComputedCRC uint16 `json:"computedCrc"`
}

// CRCOK reports whether the stored trailer matches the recomputed checksum.
func (f FrameInfo) CRCOK() bool {
	return f.StoredCRC == f.ComputedCRC
}

// Patched reports whether the header already carries the fixed channel map.
func (f FrameInfo) Patched() bool {
	return f.ChanmapE && f.Chanmap == FixedChanmap
}

// ScanResult lists the frames of a buffer without modifying it.
type ScanResult struct {
	Frames     []FrameInfo
	Leading    int
	Resyncs    int
	Stop       StopReason
	StopOffset int
}

// Mismatches counts frames whose CRC does not verify.
func (s ScanResult) Mismatches() int {
	n := 0
	for _, f := range s.Frames {
		if !f.CRCOK() {
			n++
		}
	}
	return n
}

// Scan walks buf with the same sync, resync and truncation rules as Patch
// but only reads. Offsets are relative to buf (not the trimmed view).
func Scan(buf []byte, table *CRCTable) (ScanResult, error) {
	var res ScanResult
	if table == nil {
		table = AC3CRC
	}
	start := FindSync(buf, 0)
	if start < 0 {
		return res, ErrNoSync
	}
	res.Leading = start

	total := len(buf)
	i := start
	for i+minRemaining-1 < total {
		if buf[i] != syncByte0 || buf[i+1] != syncByte1 {
			limit := i + ResyncWindow
			if limit > total {
				limit = total
			}
			j := -1
			if i+1 < limit {
				if k := FindSync(buf[:limit], i+1); k >= 0 {
					j = k
				}
			}
			if j < 0 {
				res.Stop = StopResyncExhausted
				res.StopOffset = i
				break
			}
			res.Resyncs++
			i = j
			continue
		}
		frameLen := FrameSize(buf, i)
		frameEnd := i + frameLen
		if frameEnd > total {
			res.Stop = StopTruncated
			res.StopOffset = i
			break
		}
		frame := buf[i:frameEnd]
		info := FrameInfo{
			Index:       len(res.Frames),
			Offset:      i,
			Length:      frameLen,
			ChanmapE:    GetBit(frame, chanmapeBit) == 1,
			ComputedCRC: table.Checksum(crcRange(buf, i, frameEnd), 0),
		}
		if v, ok := ReadBits(frame, 16, 2); ok {
			info.StreamType = uint8(v)
		}
		if v, ok := ReadBits(frame, 18, 3); ok {
			info.SubstreamID = uint8(v)
		}
		if v, ok := ReadBits(frame, 40, 5); ok {
			info.BSID = uint8(v)
		}
		if v, ok := ReadBits(frame, chanmapBit, chanmapBits); ok {
			info.Chanmap = uint16(v)
		}
		if frameLen >= syncwordLen+crcTrailLen {
			info.StoredCRC = uint16(frame[frameLen-2])<<8 | uint16(frame[frameLen-1])
		}
		res.Frames = append(res.Frames, info)
		i = frameEnd
	}
	return res, nil
}
