// Package coffi recognizes the TI-variant COFF magic (spec.md §4.F) but
// otherwise delegates nothing further: spec.md's Non-goals explicitly
// carve the COFFI path out of scope ("which delegates to an external
// parser and is mostly a shim"). This package exists only so the
// top-level opener's magic dispatch has somewhere to send a COFFI match
// instead of misrouting it into the ELF or PE-COFF parsers.
package coffi

import (
	"github.com/statinf-otawa/gelpp/dwarfline"
	"github.com/statinf-otawa/gelpp/format"
	"github.com/statinf-otawa/gelpp/gelerr"
)

// Match reports whether data begins with the TI COFF magic: 0xc1 or 0xc2
// followed by a zero byte, per spec.md §4.F/§6.
func Match(data []byte) bool {
	return len(data) >= 2 && (data[0] == 0xc1 || data[0] == 0xc2) && data[1] == 0x00
}

// File is a recognized-but-unparsed COFFI stand-in. Every facility beyond
// the bare File shape reports KindUnsupported, per spec.md §9's explicit
// permission to stub this path.
type File struct {
	path string
}

// Open validates the magic and returns a stub File; it does not parse
// further, matching spec.md's description of the COFFI path as a shim.
func Open(data []byte, path string) (*File, error) {
	if !Match(data) {
		return nil, gelerr.New(gelerr.KindFormat, "coffi: bad TI COFF magic")
	}
	return &File{path: path}, nil
}

func (f *File) Path() string                      { return f.path }
func (f *File) Type() format.FileType              { return format.TypeNone }
func (f *File) BigEndian() bool                    { return false }
func (f *File) AddressWidth() format.AddressWidth  { return format.Addr32 }
func (f *File) Entry() uint64                      { return 0 }
func (f *File) Machine() string                    { return "unknown" }
func (f *File) OS() string                         { return "unknown" }
func (f *File) Close() error                       { return nil }

func (f *File) Segments() ([]format.Segment, error) {
	return nil, gelerr.New(gelerr.KindUnsupported, "coffi: Segments is unimplemented")
}

func (f *File) Sections() ([]format.Section, error) {
	return nil, gelerr.New(gelerr.KindUnsupported, "coffi: Sections is unimplemented")
}

func (f *File) Symbols() (format.SymbolTable, error) {
	return nil, gelerr.New(gelerr.KindUnsupported, "coffi: Symbols is unimplemented")
}

func (f *File) DebugLines() (*dwarfline.DebugLine, error) { return nil, nil }

func (f *File) ToELF32() (format.ELF32, bool) { return nil, false }
func (f *File) ToELF64() (format.ELF64, bool) { return nil, false }
