package eac3

// CRC16Poly is the AC-3 / E-AC3 frame checksum generator polynomial
// (x^16 + x^15 + x^2 + 1), processed MSB-first.
const CRC16Poly = 0x8005

// CRCTable is a 256-entry lookup table for a 16-bit MSB-first CRC. A table is
// a plain value: once built it is never written, so it can be shared between
// goroutines without locking.
type CRCTable [256]uint16

// AC3CRC is the table used to regenerate frame checksums.
var AC3CRC = NewCRCTable(CRC16Poly)

// NewCRCTable builds the lookup table for poly.
func NewCRCTable(poly uint16) *CRCTable {
	var t CRCTable
	for n := range t {
		c := uint16(n) << 8
		for i := 0; i < 8; i++ {
			if c&0x8000 != 0 {
				c = c<<1 ^ poly
			} else {
				c <<= 1
			}
		}
		t[n] = c
	}
	return &t
}

// Checksum folds data into crc and returns the new running value. Passing 0
// starts a fresh computation; passing a previous result continues it.
func (t *CRCTable) Checksum(data []byte, crc uint16) uint16 {
	for _, b := range data {
		crc = t[(b^byte(crc>>8))&0xFF] ^ crc<<8
	}
	return crc
}

// CRC16 is a streaming calculator over a CRCTable.
type CRC16 struct {
	table *CRCTable
	value uint16
}

// NewCRC16 returns a calculator seeded with zero. A nil table selects AC3CRC.
func NewCRC16(table *CRCTable) *CRC16 {
	if table == nil {
		table = AC3CRC
	}
	return &CRC16{table: table}
}

// Write updates the checksum with p. It never fails.
func (c *CRC16) Write(p []byte) (int, error) {
	c.value = c.table.Checksum(p, c.value)
	return len(p), nil
}

// Sum16 returns the running checksum.
func (c *CRC16) Sum16() uint16 {
	return c.value
}

// Reset reseeds the calculator with zero.
func (c *CRC16) Reset() {
	c.value = 0
}
