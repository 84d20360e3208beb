// Package binary holds the format-agnostic byte-level primitives from
// spec.md §4.A: endianness-fixing Decoders, bounds-checked Buffers, and
// forward-only Cursors. Nothing here knows about ELF, PE, or DWARF; every
// other package builds on top of it.
//
// Grounded on the teacher's github.com/lunixbochs/struc-based
// StrucStream (go/models/struc_stream.go) and the width-parameterized
// PackAddr/UnpackAddr pair in go/task.go, generalized here from a single
// "pack the CPU's word size" helper into the spec's full fixed-width
// decoder contract.
package binary

// Decoder fixes 16/32/64-bit signed/unsigned integers in place between a
// file's on-disk endianness and the host's endianness. Exactly two
// instances exist for ELF (spec.md §3): LE and BE. Fix converts file to
// host; Unfix converts host to file. Both directions exist so a future
// writer path (out of scope here) has a codec to reuse.
type Decoder interface {
	// BigEndian reports whether this Decoder's file format is big-endian.
	BigEndian() bool

	FixU16(v uint16) uint16
	FixI16(v int16) int16
	FixU32(v uint32) uint32
	FixI32(v int32) int32
	FixU64(v uint64) uint64
	FixI64(v int64) int64

	UnfixU16(v uint16) uint16
	UnfixI16(v int16) int16
	UnfixU32(v uint32) uint32
	UnfixI32(v int32) int32
	UnfixU64(v uint64) uint64
	UnfixI64(v int64) int64
}

// swap16/32/64 byte-swap a fixed-width unsigned integer. The host this
// library targets (amd64/arm64/386/arm/riscv64 — every platform the Go
// toolchain ships a mainstream build for) is little-endian, so these are
// exactly the operations a LittleDecoder skips and a BigDecoder performs.
func swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

func swap32(v uint32) uint32 {
	return v<<24 | (v&0xff00)<<8 | (v&0xff0000)>>8 | v>>24
}

func swap64(v uint64) uint64 {
	return v<<56 |
		(v&0x000000000000ff00)<<40 |
		(v&0x0000000000ff0000)<<24 |
		(v&0x00000000ff000000)<<8 |
		(v&0x000000ff00000000)>>8 |
		(v&0x0000ff0000000000)>>24 |
		(v&0x00ff000000000000)>>40 |
		v>>56
}

// littleDecoder treats the file as little-endian; on a little-endian host
// every Fix/Unfix is the identity.
type littleDecoder struct{}

func (littleDecoder) BigEndian() bool { return false }

func (littleDecoder) FixU16(v uint16) uint16 { return v }
func (littleDecoder) FixI16(v int16) int16   { return v }
func (littleDecoder) FixU32(v uint32) uint32 { return v }
func (littleDecoder) FixI32(v int32) int32   { return v }
func (littleDecoder) FixU64(v uint64) uint64 { return v }
func (littleDecoder) FixI64(v int64) int64   { return v }

func (littleDecoder) UnfixU16(v uint16) uint16 { return v }
func (littleDecoder) UnfixI16(v int16) int16   { return v }
func (littleDecoder) UnfixU32(v uint32) uint32 { return v }
func (littleDecoder) UnfixI32(v int32) int32   { return v }
func (littleDecoder) UnfixU64(v uint64) uint64 { return v }
func (littleDecoder) UnfixI64(v int64) int64   { return v }

// bigDecoder treats the file as big-endian; every Fix/Unfix byte-swaps.
type bigDecoder struct{}

func (bigDecoder) BigEndian() bool { return true }

func (bigDecoder) FixU16(v uint16) uint16 { return swap16(v) }
func (bigDecoder) FixI16(v int16) int16   { return int16(swap16(uint16(v))) }
func (bigDecoder) FixU32(v uint32) uint32 { return swap32(v) }
func (bigDecoder) FixI32(v int32) int32   { return int32(swap32(uint32(v))) }
func (bigDecoder) FixU64(v uint64) uint64 { return swap64(v) }
func (bigDecoder) FixI64(v int64) int64   { return int64(swap64(uint64(v))) }

func (bigDecoder) UnfixU16(v uint16) uint16 { return swap16(v) }
func (bigDecoder) UnfixI16(v int16) int16   { return int16(swap16(uint16(v))) }
func (bigDecoder) UnfixU32(v uint32) uint32 { return swap32(v) }
func (bigDecoder) UnfixI32(v int32) int32   { return int32(swap32(uint32(v))) }
func (bigDecoder) UnfixU64(v uint64) uint64 { return swap64(v) }
func (bigDecoder) UnfixI64(v int64) int64   { return int64(swap64(uint64(v))) }

// LittleEndian and BigEndian are the two process-wide Decoder instances
// spec.md §3 calls for.
var (
	LittleEndian Decoder = littleDecoder{}
	BigEndian    Decoder = bigDecoder{}
)

// DecoderFor returns LittleEndian or BigEndian for the given flag, the
// shape ELF's EI_DATA byte naturally selects from.
func DecoderFor(bigEndian bool) Decoder {
	if bigEndian {
		return BigEndian
	}
	return LittleEndian
}
