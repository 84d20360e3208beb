// Package pecoff recognizes and partially parses the PE-COFF format named
// in spec.md §4.F/§6: MS-DOS stub, COFF file header, and section table —
// enough to expose a format.File's common surface (Type, Machine, Entry,
// Segments). Symbol-table parsing is deferred per spec.md §9's open
// question ("an implementation may choose to defer PE-COFF symbols() ...
// with explicit 'unimplemented' errors").
//
// Struct layouts are grounded on the xyproto-vibe67 example repo's
// pe_reader.go (DOSHeader/COFFHeader/SectionHeader), unpacked here with
// github.com/lunixbochs/struc the way the teacher's go/models/elf_auxv.go
// and struc_stream.go unpack fixed records against an explicit byte
// order, instead of that file's plain encoding/binary calls.
package pecoff

import (
	"bytes"
	stdbin "encoding/binary"
	"os"

	"github.com/lunixbochs/struc"

	"github.com/statinf-otawa/gelpp/dwarfline"
	"github.com/statinf-otawa/gelpp/format"
	"github.com/statinf-otawa/gelpp/gelerr"
)

// Magic is the 2-byte MS-DOS "MZ" signature.
var Magic = []byte{'M', 'Z'}

// Match reports whether data begins with the MS-DOS stub signature.
func Match(data []byte) bool {
	return len(data) >= 2 && bytes.Equal(data[:2], Magic)
}

type coffHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

type sectionHeader struct {
	Name                 [8]byte
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLinenumbers uint32
	NumberOfRelocations  uint16
	NumberOfLinenumbers  uint16
	Characteristics      uint32
}

const (
	imageScnMemExecute = 0x20000000
	imageScnMemWrite   = 0x80000000
	imageScnMemRead    = 0x40000000
)

type section struct {
	name       string
	vaddr      uint64
	vsize      uint64
	rawOff     uint32
	rawSize    uint32
	characteristics uint32
}

func (s *section) flags() (exec, write bool) {
	return s.characteristics&imageScnMemExecute != 0, s.characteristics&imageScnMemWrite != 0
}

// File is the concrete PE-COFF File. It implements format.File but not
// format.ELF32/ELF64 — ToELF32/ToELF64 always report ok=false.
type File struct {
	path     string
	data     []byte
	machine  uint16
	entry    uint32
	sections []*section
}

// Open reads the MS-DOS stub, locates the PE signature via the dword at
// file offset 0x3C, then parses the COFF header and section table.
func Open(data []byte, path string) (*File, error) {
	if !Match(data) {
		return nil, gelerr.New(gelerr.KindFormat, "pecoff: bad MZ signature")
	}
	if len(data) < 0x40 {
		return nil, gelerr.New(gelerr.KindFormat, "pecoff: truncated MS-DOS stub")
	}
	peOff := stdbin.LittleEndian.Uint32(data[0x3C:0x40])
	if uint64(peOff)+4+20 > uint64(len(data)) {
		return nil, gelerr.New(gelerr.KindFormat, "pecoff: PE signature offset out of bounds")
	}
	if !bytes.Equal(data[peOff:peOff+4], []byte{'P', 'E', 0, 0}) {
		return nil, gelerr.New(gelerr.KindFormat, "pecoff: missing PE\\0\\0 signature")
	}
	var hdr coffHeader
	r := bytes.NewReader(data[peOff+4:])
	if err := struc.UnpackWithOrder(r, &hdr, stdbin.LittleEndian); err != nil {
		return nil, gelerr.Wrap(err, gelerr.KindFormat, "pecoff: truncated COFF header")
	}

	f := &File{path: path, data: data, machine: hdr.Machine}

	// Skip the optional header; the section table follows it directly.
	sectionTableOff := int(peOff) + 4 + 20 + int(hdr.SizeOfOptionalHeader)
	if hdr.SizeOfOptionalHeader >= 24 {
		opt := data[sectionTableOff-int(hdr.SizeOfOptionalHeader):]
		if len(opt) >= 20 {
			f.entry = stdbin.LittleEndian.Uint32(opt[16:20])
		}
	}
	if sectionTableOff < 0 || sectionTableOff > len(data) {
		return nil, gelerr.New(gelerr.KindFormat, "pecoff: section table offset out of bounds")
	}
	sr := bytes.NewReader(data[sectionTableOff:])
	for i := 0; i < int(hdr.NumberOfSections); i++ {
		var sh sectionHeader
		if err := struc.UnpackWithOrder(sr, &sh, stdbin.LittleEndian); err != nil {
			return nil, gelerr.Wrap(err, gelerr.KindFormat, "pecoff: truncated section header %d", i)
		}
		f.sections = append(f.sections, &section{
			name:            trimNulName(sh.Name[:]),
			vaddr:           uint64(sh.VirtualAddress),
			vsize:           uint64(sh.VirtualSize),
			rawOff:          sh.PointerToRawData,
			rawSize:         sh.SizeOfRawData,
			characteristics: sh.Characteristics,
		})
	}
	return f, nil
}

// OpenFile reads path and parses it as a PE-COFF file.
func OpenFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gelerr.Wrap(err, gelerr.KindIO, "pecoff: cannot read %s", path)
	}
	return Open(data, path)
}

func trimNulName(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// --- format.File ---

func (f *File) Path() string            { return f.path }
func (f *File) Type() format.FileType   { return format.TypeNone }
func (f *File) BigEndian() bool         { return false }
func (f *File) AddressWidth() format.AddressWidth { return format.Addr32 }
func (f *File) Entry() uint64           { return uint64(f.entry) }
func (f *File) Machine() string         { return peMachineName(f.machine) }
func (f *File) OS() string              { return "windows" }
func (f *File) Close() error            { return nil }

// Segments maps each section with the executable, writable or readable
// memory characteristic to an ImageSegment-shaped region; a PE-COFF file has no
// program-header concept, so sections stand in directly (spec.md §9).
func (f *File) Segments() ([]format.Segment, error) {
	var out []format.Segment
	for _, s := range f.sections {
		exec, write := s.flags()
		if !exec && !write && s.characteristics&imageScnMemRead == 0 {
			continue
		}
		out = append(out, &peSegment{f: f, s: s, exec: exec, write: write})
	}
	return out, nil
}

func (f *File) Sections() ([]format.Section, error) {
	return nil, gelerr.New(gelerr.KindUnsupported, "pecoff: section accessor unimplemented")
}

// Symbols is deferred per spec.md §9's open question.
func (f *File) Symbols() (format.SymbolTable, error) {
	return nil, gelerr.New(gelerr.KindUnsupported, "pecoff: Symbols is unimplemented")
}

func (f *File) DebugLines() (*dwarfline.DebugLine, error) { return nil, nil }

func (f *File) ToELF32() (format.ELF32, bool) { return nil, false }
func (f *File) ToELF64() (format.ELF64, bool) { return nil, false }

type peSegment struct {
	f     *File
	s     *section
	exec  bool
	write bool
}

func (p *peSegment) Name() string          { return p.s.name }
func (p *peSegment) BaseAddress() uint64   { return p.s.vaddr }
func (p *peSegment) LoadAddress() uint64   { return p.s.vaddr }
func (p *peSegment) SizeInMemory() uint64  { return p.s.vsize }
func (p *peSegment) Alignment() uint64     { return 0x1000 }
func (p *peSegment) Executable() bool      { return p.exec }
func (p *peSegment) Writable() bool        { return p.write }
func (p *peSegment) HasFileContent() bool  { return p.s.rawSize > 0 }

func (p *peSegment) Content() ([]byte, error) {
	if p.s.rawOff == 0 || p.s.rawSize == 0 {
		return []byte{}, nil
	}
	start := int(p.s.rawOff)
	end := start + int(p.s.rawSize)
	if start < 0 || end > len(p.f.data) {
		return nil, gelerr.New(gelerr.KindInvariant, "pecoff: section %q content out of bounds", p.s.name)
	}
	return p.f.data[start:end], nil
}
