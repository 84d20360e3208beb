package binary

// Cursor is a forward-only position into a Buffer (spec.md §3/§4.A). Every
// read advances the offset only on success; on a short read the cursor
// stays put and the caller must treat the false return as a hard failure
// (per spec.md §4.A's failure policy, primitives never silently return
// zero as if it were real data).
type Cursor struct {
	buf *Buffer
	off int
}

// NewCursor starts a Cursor at the beginning of buf.
func NewCursor(buf *Buffer) *Cursor {
	return &Cursor{buf: buf}
}

// NewCursorAt starts a Cursor at the given offset into buf.
func NewCursorAt(buf *Buffer, offset int) *Cursor {
	return &Cursor{buf: buf, off: offset}
}

func (c *Cursor) Decoder() Decoder { return c.buf.Decoder() }
func (c *Cursor) Offset() int      { return c.off }

// Here returns the unread remainder of the underlying buffer.
func (c *Cursor) Here() []byte {
	b, _ := c.buf.At(c.off, c.buf.Len()-c.off)
	return b
}

// Ended reports whether the cursor has consumed the whole buffer.
func (c *Cursor) Ended() bool { return c.off >= c.buf.Len() }

// Avail reports whether n more bytes remain to be read.
func (c *Cursor) Avail(n int) bool { return c.buf.fits(c.off, n) }

// Move seeks to an absolute offset. It fails (returning false, leaving the
// cursor where it was) if abs is out of bounds.
func (c *Cursor) Move(abs int) bool {
	if abs < 0 || abs > c.buf.Len() {
		return false
	}
	c.off = abs
	return true
}

// Skip advances the cursor by n bytes without reading them.
func (c *Cursor) Skip(n int) bool {
	if !c.Avail(n) {
		return false
	}
	c.off += n
	return true
}

// Finish moves the cursor to the end of its buffer.
func (c *Cursor) Finish() {
	c.off = c.buf.Len()
}

func (c *Cursor) ReadU8() (uint8, bool) {
	v, ok := c.buf.U8(c.off)
	if ok {
		c.off++
	}
	return v, ok
}

func (c *Cursor) ReadI8() (int8, bool) {
	v, ok := c.ReadU8()
	return int8(v), ok
}

func (c *Cursor) ReadU16() (uint16, bool) {
	v, ok := c.buf.U16(c.off)
	if ok {
		c.off += 2
	}
	return v, ok
}

func (c *Cursor) ReadI16() (int16, bool) {
	v, ok := c.buf.I16(c.off)
	if ok {
		c.off += 2
	}
	return v, ok
}

func (c *Cursor) ReadU32() (uint32, bool) {
	v, ok := c.buf.U32(c.off)
	if ok {
		c.off += 4
	}
	return v, ok
}

func (c *Cursor) ReadI32() (int32, bool) {
	v, ok := c.buf.I32(c.off)
	if ok {
		c.off += 4
	}
	return v, ok
}

func (c *Cursor) ReadU64() (uint64, bool) {
	v, ok := c.buf.U64(c.off)
	if ok {
		c.off += 8
	}
	return v, ok
}

func (c *Cursor) ReadI64() (int64, bool) {
	v, ok := c.buf.I64(c.off)
	if ok {
		c.off += 8
	}
	return v, ok
}

// ReadBytes returns the next n bytes and advances past them.
func (c *Cursor) ReadBytes(n int) ([]byte, bool) {
	b, ok := c.buf.At(c.off, n)
	if ok {
		c.off += n
	}
	return b, ok
}

// ReadCString reads a null-terminated string and advances past its
// terminator.
func (c *Cursor) ReadCString() (string, bool) {
	s, ok := c.buf.CString(c.off)
	if !ok {
		return "", false
	}
	c.off += len(s) + 1
	return s, true
}
