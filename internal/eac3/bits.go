package eac3

// Bit offsets address the buffer MSB-first: offset 0 is the most significant
// bit of byte 0. Out-of-range offsets never panic; reads yield 0 and writes are
// dropped.

// GetBit returns the bit at bitOffset, or 0 when the byte lies outside buf.
func GetBit(buf []byte, bitOffset int) uint8 {
	n := bitOffset >> 3
	if bitOffset < 0 || n >= len(buf) {
		return 0
	}
	return (buf[n] >> (7 - uint(bitOffset&7))) & 0x01
}

// SetBit sets (value != 0) or clears the bit at bitOffset. Other bits of the
// byte are left untouched.
func SetBit(buf []byte, value uint8, bitOffset int) {
	n := bitOffset >> 3
	if bitOffset < 0 || n >= len(buf) {
		return
	}
	mask := byte(0x80) >> uint(bitOffset&7)
	if value != 0 {
		buf[n] |= mask
	} else {
		buf[n] &^= mask
	}
}

// SetByteAtBit writes value into the 8-bit window starting at bitOffset, which
// may straddle two bytes. The write is skipped entirely unless both bytes
// n and n+1 are inside buf, even when bitOffset is byte aligned.
func SetByteAtBit(buf []byte, value byte, bitOffset int) {
	n := bitOffset >> 3
	if bitOffset < 0 || n+1 >= len(buf) {
		return
	}
	offs := uint(bitOffset & 7)
	if offs == 0 {
		buf[n] = value
		return
	}
	buf[n] = buf[n]&(0xFF<<(8-offs)) | value>>offs
	buf[n+1] = buf[n+1]&(0xFF>>offs) | value<<(8-offs)
}

// ReadBits reads n (<= 32) bits starting at bitOffset. ok is false when the
// range runs past the end of buf.
func ReadBits(buf []byte, bitOffset, n int) (uint32, bool) {
	if n <= 0 || n > 32 || bitOffset < 0 || bitOffset+n > len(buf)*8 {
		return 0, false
	}
	var v uint32
	for i := 0; i < n; i++ {
		v = v<<1 | uint32(GetBit(buf, bitOffset+i))
	}
	return v, true
}
