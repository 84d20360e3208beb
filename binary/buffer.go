package binary

// Buffer is an immutable, non-owning view over a byte region plus the
// Decoder that fixes its endianness (spec.md §3: "Buffers do not own
// memory; their lifetime is bounded by the provider"). Every typed read
// is bounds-checked; a short read is a hard failure signaled by a false
// return, never a panic or a zero value passed off as real data.
type Buffer struct {
	decoder Decoder
	base    []byte
}

// NewBuffer wraps base (not copied) with decoder.
func NewBuffer(decoder Decoder, base []byte) *Buffer {
	return &Buffer{decoder: decoder, base: base}
}

// Len reports the buffer's length in bytes.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.base)
}

// Decoder returns the endianness-fixer backing this buffer.
func (b *Buffer) Decoder() Decoder { return b.decoder }

// Bytes exposes the raw backing slice, still owned by whoever built this
// Buffer. Callers must not retain it past the owner's lifetime.
func (b *Buffer) Bytes() []byte { return b.base }

func (b *Buffer) fits(offset, size int) bool {
	if b == nil || offset < 0 || size < 0 {
		return false
	}
	return offset+size <= len(b.base)
}

// At returns a bounds-checked sub-slice [offset, offset+length).
func (b *Buffer) At(offset, length int) ([]byte, bool) {
	if !b.fits(offset, length) {
		return nil, false
	}
	return b.base[offset : offset+length], true
}

func (b *Buffer) U8(offset int) (uint8, bool) {
	if !b.fits(offset, 1) {
		return 0, false
	}
	return b.base[offset], true
}

func (b *Buffer) I8(offset int) (int8, bool) {
	v, ok := b.U8(offset)
	return int8(v), ok
}

func (b *Buffer) U16(offset int) (uint16, bool) {
	if !b.fits(offset, 2) {
		return 0, false
	}
	v := uint16(b.base[offset]) | uint16(b.base[offset+1])<<8
	return b.decoder.FixU16(v), true
}

func (b *Buffer) I16(offset int) (int16, bool) {
	v, ok := b.U16(offset)
	return int16(v), ok
}

func (b *Buffer) U32(offset int) (uint32, bool) {
	if !b.fits(offset, 4) {
		return 0, false
	}
	v := uint32(b.base[offset]) | uint32(b.base[offset+1])<<8 |
		uint32(b.base[offset+2])<<16 | uint32(b.base[offset+3])<<24
	return b.decoder.FixU32(v), true
}

func (b *Buffer) I32(offset int) (int32, bool) {
	v, ok := b.U32(offset)
	return int32(v), ok
}

func (b *Buffer) U64(offset int) (uint64, bool) {
	if !b.fits(offset, 8) {
		return 0, false
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b.base[offset+i]) << (8 * i)
	}
	return b.decoder.FixU64(v), true
}

func (b *Buffer) I64(offset int) (int64, bool) {
	v, ok := b.U64(offset)
	return int64(v), ok
}

// CString returns the null-terminated byte sequence starting at offset, not
// including the terminator. The scan is bounded by the buffer's length; an
// unterminated run reports ok=false.
func (b *Buffer) CString(offset int) (string, bool) {
	if b == nil || offset < 0 || offset > len(b.base) {
		return "", false
	}
	for i := offset; i < len(b.base); i++ {
		if b.base[i] == 0 {
			return string(b.base[offset:i]), true
		}
	}
	return "", false
}
