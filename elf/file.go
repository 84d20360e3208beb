package elf

import (
	"bytes"
	stdbin "encoding/binary"
	"os"

	"github.com/lunixbochs/struc"

	"github.com/statinf-otawa/gelpp/binary"
	"github.com/statinf-otawa/gelpp/dwarfline"
	"github.com/statinf-otawa/gelpp/format"
	"github.com/statinf-otawa/gelpp/gelerr"
)

// Magic is the 4-byte ELF magic from spec.md §6.
var Magic = []byte{0x7f, 'E', 'L', 'F'}

// Match reports whether data begins with the ELF magic.
func Match(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], Magic)
}

// File is the concrete ELF32/ELF64 File. Both classes share this single
// implementation (spec.md §4.C: "32 and 64 are structurally identical,
// differing only in field widths"); is64 selects which width the internal
// helpers use.
type File struct {
	path string
	data []byte
	dec  binary.Decoder
	is64 bool

	ehdrType      uint16
	machine       uint16
	osabi         uint8
	entry         uint64
	phoff, shoff  uint64
	phentsize     uint16
	phnum         uint16
	shentsize     uint16
	shnum         uint16
	shstrndx      uint16

	manager *gelerr.Manager

	programHeaders []format.ProgramHeader
	sections       []format.Section
	symbols        format.SymbolTable
	debugLines     *dwarfline.DebugLine
	debugLinesSet  bool
}

// OpenELFFile reads path and parses it as an ELF file.
func OpenELFFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gelerr.Wrap(err, gelerr.KindIO, "elf: cannot read %s", path)
	}
	return Open(data, path)
}

// Open parses an in-memory ELF image. The File borrows data for its entire
// lifetime (spec.md §3: "Buffers do not own memory").
func Open(data []byte, path string) (*File, error) {
	if !Match(data) {
		return nil, gelerr.New(gelerr.KindFormat, "elf: bad magic")
	}
	if len(data) < 16 {
		return nil, gelerr.New(gelerr.KindFormat, "elf: truncated e_ident")
	}
	var is64 bool
	switch data[eiClass] {
	case ELFCLASS32:
		is64 = false
	case ELFCLASS64:
		is64 = true
	default:
		return nil, gelerr.New(gelerr.KindFormat, "elf: unknown EI_CLASS %d", data[eiClass])
	}
	var bigEndian bool
	switch data[eiData] {
	case ELFDATA2LSB:
		bigEndian = false
	case ELFDATA2BSB:
		bigEndian = true
	default:
		return nil, gelerr.New(gelerr.KindFormat, "elf: unknown EI_DATA %d", data[eiData])
	}
	dec := binary.DecoderFor(bigEndian)
	order := stdOrder(bigEndian)

	f := &File{path: path, data: data, dec: dec, is64: is64, manager: gelerr.DefaultManager()}
	f.osabi = data[eiOSABI]

	r := bytes.NewReader(data[16:])
	if is64 {
		var h Ehdr64
		if err := struc.UnpackWithOrder(r, &h, order); err != nil {
			return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated ELF64 header")
		}
		f.fill64(&h)
	} else {
		var h Ehdr32
		if err := struc.UnpackWithOrder(r, &h, order); err != nil {
			return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated ELF32 header")
		}
		f.fill32(&h)
	}

	if f.shnum > 0 && f.shstrndx >= f.shnum {
		return nil, gelerr.New(gelerr.KindInvariant, "elf: e_shstrndx (%d) >= e_shnum (%d)", f.shstrndx, f.shnum)
	}
	return f, nil
}

func (f *File) fill32(h *Ehdr32) {
	f.ehdrType = h.Type
	f.machine = h.Machine
	f.entry = uint64(h.Entry)
	f.phoff = uint64(h.Phoff)
	f.shoff = uint64(h.Shoff)
	f.phentsize = h.Phentsize
	f.phnum = h.Phnum
	f.shentsize = h.Shentsize
	f.shnum = h.Shnum
	f.shstrndx = h.Shstrndx
}

func (f *File) fill64(h *Ehdr64) {
	f.ehdrType = h.Type
	f.machine = h.Machine
	f.entry = h.Entry
	f.phoff = h.Phoff
	f.shoff = h.Shoff
	f.phentsize = h.Phentsize
	f.phnum = h.Phnum
	f.shentsize = h.Shentsize
	f.shnum = h.Shnum
	f.shstrndx = h.Shstrndx
}

func stdOrder(bigEndian bool) stdbin.ByteOrder {
	if bigEndian {
		return stdbin.BigEndian
	}
	return stdbin.LittleEndian
}

func (f *File) buffer() *binary.Buffer { return binary.NewBuffer(f.dec, f.data) }

// --- format.File ---

func (f *File) Path() string    { return f.path }
func (f *File) BigEndian() bool { return f.dec.BigEndian() }
func (f *File) Entry() uint64   { return f.entry }
func (f *File) Close() error    { return nil }

func (f *File) AddressWidth() format.AddressWidth {
	if f.is64 {
		return format.Addr64
	}
	return format.Addr32
}

func (f *File) Type() format.FileType {
	switch f.ehdrType {
	case ET_EXEC, ET_DYN:
		if f.ehdrType == ET_EXEC {
			return format.TypeProgram
		}
		return format.TypeLibrary
	default:
		return format.TypeNone
	}
}

func (f *File) Machine() string { return machineName(f.machine) }
func (f *File) OS() string      { return osabiName(f.osabi) }

func (f *File) ToELF32() (format.ELF32, bool) {
	if f.is64 {
		return nil, false
	}
	return f, true
}

func (f *File) ToELF64() (format.ELF64, bool) {
	if !f.is64 {
		return nil, false
	}
	return f, true
}
