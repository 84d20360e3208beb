// Package format is the format-agnostic binary model from spec.md §4.B/§3:
// a pure interface layer that the elf (and, partially, pecoff/coffi)
// packages implement. Nothing in here knows how to parse a byte stream;
// it only names the shapes every File subtype must expose.
//
// Grounded on the teacher's go/models/loader.go Loader interface plus the
// embeddable LoaderHeader base, generalized from usercorn's emulator-facing
// subset (Arch/OS/Entry/Symbols) to the spec's full File/Segment/Section/
// Symbol/SymbolTable/ProgramHeader/Dyn model.
package format

import "github.com/statinf-otawa/gelpp/dwarfline"

// FileType mirrors spec.md §3's File.type enum.
type FileType int

const (
	TypeNone FileType = iota
	TypeProgram
	TypeLibrary
)

func (t FileType) String() string {
	switch t {
	case TypeProgram:
		return "program"
	case TypeLibrary:
		return "library"
	default:
		return "none"
	}
}

// AddressWidth tags an Address with its representation width, used only
// for formatting/size decisions per spec.md §3.
type AddressWidth int

const (
	Addr8 AddressWidth = 8
	Addr16 AddressWidth = 16
	Addr32 AddressWidth = 32
	Addr64 AddressWidth = 64
)

// Address is a 64-bit value tagged with its natural representation width.
type Address struct {
	Value uint64
	Width AddressWidth
}

// SymbolType mirrors spec.md §3's Symbol.type enum.
type SymbolType int

const (
	SymNone SymbolType = iota
	SymOther
	SymFunc
	SymData
)

// SymbolBinding mirrors spec.md §3's Symbol.binding enum.
type SymbolBinding int

const (
	BindNone SymbolBinding = iota
	BindOther
	BindLocal
	BindGlobal
	BindWeak
)

// SectionIndexKind distinguishes the special ELF section-index values a
// Symbol can carry from a literal index into the section table.
type SectionIndexKind int

const (
	SectionIndexLiteral SectionIndexKind = iota
	SectionIndexUndef
	SectionIndexAbs
	SectionIndexCommon
)

// Symbol is the spec.md §3 Symbol shape: name, address, size, type,
// binding, and a section reference.
type Symbol interface {
	Name() string
	Value() uint64
	Size() uint64
	Type() SymbolType
	Binding() SymbolBinding
	SectionIndexKind() SectionIndexKind
	SectionIndex() int
}

// SymbolTable is a name-keyed map of Symbols (spec.md §3: "keys need not
// be unique across multiple symbol sections; last-write-wins").
type SymbolTable interface {
	Lookup(name string) (Symbol, bool)
	All() map[string]Symbol
	// Nearest returns the Symbol at or below addr that is closest to it,
	// together with the distance. A sized Symbol only matches inside its
	// [Value, Value+Size) range; a Symbol of size 0 matches by distance
	// alone; Symbols with Value 0 are never returned. Per the
	// SUPPLEMENTED "nearest-match
	// lookup" feature in SPEC_FULL.md, grounded on the teacher's
	// MappedFile.Symbolicate / ElfLoader.Symbolicate.
	Nearest(addr uint64) (Symbol, uint64, bool)
}

// Segment is the spec.md §3 loadable-region shape.
type Segment interface {
	Name() string
	BaseAddress() uint64
	LoadAddress() uint64
	SizeInMemory() uint64
	Alignment() uint64
	Executable() bool
	Writable() bool
	HasFileContent() bool
	Content() ([]byte, error)
}

// Section is the spec.md §3 named/typed file-region shape.
type Section interface {
	Name() string
	Type() uint32
	Flags() uint64
	Addr() uint64
	Link() uint32
	EntrySize() uint64
	Size() uint64
	Content() ([]byte, error)
}

// ProgramHeader is the ELF-specific shape from spec.md §3.
type ProgramHeader interface {
	Type() uint32
	Offset() uint64
	VirtualAddress() uint64
	PhysicalAddress() uint64
	FileSize() uint64
	MemorySize() uint64
	Flags() uint32
	Alignment() uint64
	Content() ([]byte, error)
}

// Dyn is the ELF-specific tagged union from spec.md §3.
type Dyn struct {
	Tag   int64
	Value uint64
}

// File is the top-level abstract entity from spec.md §3. Format-specific
// facilities (ELF program headers, dynamic entries) are reached through
// the ToELF32/ToELF64 downcasts per spec.md §4.B, never through a separate
// discovery protocol.
type File interface {
	Path() string
	Type() FileType
	BigEndian() bool
	AddressWidth() AddressWidth
	Entry() uint64
	Machine() string
	OS() string

	Segments() ([]Segment, error)
	Sections() ([]Section, error)
	Symbols() (SymbolTable, error)
	DebugLines() (*dwarfline.DebugLine, error)

	// ToELF32/ToELF64 let a caller reach ELF-specific facilities without a
	// separate type-discovery protocol; exactly one of the pair returns
	// ok=true for an ELF File, both return ok=false otherwise.
	ToELF32() (ELF32, bool)
	ToELF64() (ELF64, bool)

	Close() error
}

// ELF32 and ELF64 name the ELF-specific operations from spec.md §4.C that
// sit above the common File interface: program headers, dynamic entries,
// notes, and the raw class/endianness fields a dynamic-linker-shaped
// consumer (the image builder) needs.
type ELF32 interface {
	File
	ProgramHeaders() ([]ProgramHeader, error)
	Dyns(sec Section) ([]Dyn, error)
	Notes(ph ProgramHeader) ([]Note, error)
	StringAt(offset int, sectionIndex int) (string, bool)
}

// ELF64 is the 64-bit analog of ELF32; both are satisfied by the same
// underlying methods in package elf, differing only in field widths
// internally.
type ELF64 interface {
	File
	ProgramHeaders() ([]ProgramHeader, error)
	Dyns(sec Section) ([]Dyn, error)
	Notes(ph ProgramHeader) ([]Note, error)
	StringAt(offset int, sectionIndex int) (string, bool)
}

// Note is one entry of a PT_NOTE program header's content, per spec.md
// §4.C's "Notes iterator".
type Note struct {
	Name string
	Type uint32
	Desc []byte
}
