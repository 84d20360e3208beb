package binary

import "testing"

func TestDecoderRoundTrip(t *testing.T) {
	for _, d := range []Decoder{LittleEndian, BigEndian} {
		if got := d.UnfixU16(d.FixU16(0xabcd)); got != 0xabcd {
			t.Fatalf("u16 round trip: got 0x%x", got)
		}
		if got := d.UnfixU32(d.FixU32(0xdeadbeef)); got != 0xdeadbeef {
			t.Fatalf("u32 round trip: got 0x%x", got)
		}
		if got := d.UnfixU64(d.FixU64(0x0102030405060708)); got != 0x0102030405060708 {
			t.Fatalf("u64 round trip: got 0x%x", got)
		}
		if got := d.UnfixI32(d.FixI32(-1)); got != -1 {
			t.Fatalf("i32 round trip: got %d", got)
		}
	}
}

func TestBufferU32LittleEndian(t *testing.T) {
	buf := NewBuffer(LittleEndian, []byte{0xef, 0xbe, 0xad, 0xde})
	v, ok := buf.U32(0)
	if !ok || v != 0xdeadbeef {
		t.Fatalf("got 0x%x ok=%v", v, ok)
	}
}

func TestBufferU32BigEndian(t *testing.T) {
	buf := NewBuffer(BigEndian, []byte{0xde, 0xad, 0xbe, 0xef})
	v, ok := buf.U32(0)
	if !ok || v != 0xdeadbeef {
		t.Fatalf("got 0x%x ok=%v", v, ok)
	}
}

func TestBufferBoundsViolation(t *testing.T) {
	buf := NewBuffer(LittleEndian, []byte{1, 2, 3})
	if _, ok := buf.U32(0); ok {
		t.Fatal("expected out-of-bounds U32 read to fail")
	}
	if _, ok := buf.U8(3); ok {
		t.Fatal("expected out-of-bounds U8 read to fail")
	}
}

func TestCursorReadsAdvanceOnlyOnSuccess(t *testing.T) {
	buf := NewBuffer(LittleEndian, []byte{1, 0, 0, 0, 2, 0})
	c := NewCursor(buf)
	v, ok := c.ReadU32()
	if !ok || v != 1 || c.Offset() != 4 {
		t.Fatalf("unexpected state after ReadU32: v=%d ok=%v off=%d", v, ok, c.Offset())
	}
	if _, ok := c.ReadU32(); ok {
		t.Fatal("expected short read to fail")
	}
	if c.Offset() != 4 {
		t.Fatalf("cursor moved on failed read: off=%d", c.Offset())
	}
	if v, ok := c.ReadU16(); !ok || v != 2 {
		t.Fatalf("ReadU16 after failed read: v=%d ok=%v", v, ok)
	}
}

func TestCursorCString(t *testing.T) {
	buf := NewBuffer(LittleEndian, []byte("abc\x00def"))
	c := NewCursor(buf)
	s, ok := c.ReadCString()
	if !ok || s != "abc" {
		t.Fatalf("got %q ok=%v", s, ok)
	}
	if c.Offset() != 4 {
		t.Fatalf("offset after cstring: %d", c.Offset())
	}
}

func TestCursorULEB128(t *testing.T) {
	// 624485 encodes to 0xE5 0x8E 0x26 per the DWARF spec example.
	buf := NewBuffer(LittleEndian, []byte{0xE5, 0x8E, 0x26})
	c := NewCursor(buf)
	v, ok := c.ReadULEB128()
	if !ok || v != 624485 {
		t.Fatalf("got %d ok=%v", v, ok)
	}
}

func TestCursorSLEB128Negative(t *testing.T) {
	// -624485 encodes to 0x9B 0xF1 0x59 as SLEB128.
	buf := NewBuffer(LittleEndian, []byte{0x9B, 0xF1, 0x59})
	c := NewCursor(buf)
	v, ok := c.ReadSLEB128()
	if !ok || v != -624485 {
		t.Fatalf("got %d ok=%v", v, ok)
	}
}
