package binary

// ReadULEB128 reads an unsigned LEB128-encoded integer (DWARF spec.md
// §4.E's directory/file tables and most line-VM operands use this). The
// cursor advances past the encoding only on success.
func (c *Cursor) ReadULEB128() (uint64, bool) {
	var result uint64
	var shift uint
	start := c.off
	for {
		b, ok := c.buf.U8(c.off)
		if !ok {
			c.off = start
			return 0, false
		}
		c.off++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, true
		}
		shift += 7
		if shift >= 64 {
			c.off = start
			return 0, false
		}
	}
}

// ReadSLEB128 reads a signed LEB128-encoded integer (DWARF
// DW_LNS_advance_line's operand).
func (c *Cursor) ReadSLEB128() (int64, bool) {
	var result int64
	var shift uint
	start := c.off
	var b uint8
	var ok bool
	for {
		b, ok = c.buf.U8(c.off)
		if !ok {
			c.off = start
			return 0, false
		}
		c.off++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
		if shift >= 64 {
			c.off = start
			return 0, false
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, true
}
