// Package elf implements the ELF parser from spec.md §4.C: 32- and 64-bit
// variants behind one interface (format.ELF32/format.ELF64), sharing every
// operation except field width.
//
// Grounded on the teacher's go/loader/elf.go (machine-name table, PT_LOAD
// → Segment derivation, lazy Symbols()/Segments() shape), generalized from
// its stdlib debug/elf-delegating shortcut into the spec's own header/
// program-header/section-header parsing. Struct layouts are unpacked with
// github.com/lunixbochs/struc the way the teacher's
// go/models/struc_stream.go and go/models/elf_auxv.go pack/unpack fixed
// records against an explicit byte order.
package elf

// Ehdr32/Ehdr64 are the fields of Elf32_Ehdr/Elf64_Ehdr following the
// 16-byte e_ident (sniffed separately — see Open in file.go).
type Ehdr32 struct {
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type Ehdr64 struct {
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

// Phdr32/Phdr64 are Elf32_Phdr/Elf64_Phdr. Field order differs between the
// two classes (64-bit moves Flags up next to Type) exactly as the real ABI
// does.
type Phdr32 struct {
	Type   uint32
	Offset uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

type Phdr64 struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Shdr32/Shdr64 are Elf32_Shdr/Elf64_Shdr.
type Shdr32 struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

type Shdr64 struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

// Sym32/Sym64 are Elf32_Sym/Elf64_Sym.
type Sym32 struct {
	Name  uint32
	Value uint32
	Size  uint32
	Info  uint8
	Other uint8
	Shndx uint16
}

type Sym64 struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

// Dyn32/Dyn64 are Elf32_Dyn/Elf64_Dyn: a signed tag plus a union value.
type Dyn32 struct {
	Tag int32
	Val uint32
}

type Dyn64 struct {
	Tag int64
	Val uint64
}

// Program header types relevant to the image builder and notes iterator.
const (
	PT_NULL    = 0
	PT_LOAD    = 1
	PT_DYNAMIC = 2
	PT_INTERP  = 3
	PT_NOTE    = 4
	PT_SHLIB   = 5
	PT_PHDR    = 6
	PT_TLS     = 7
)

// Program header flag bits.
const (
	PF_X = 1 << 0
	PF_W = 1 << 1
	PF_R = 1 << 2
)

// Section types relevant to the parser.
const (
	SHT_NULL     = 0
	SHT_SYMTAB   = 2
	SHT_STRTAB   = 3
	SHT_RELA     = 4
	SHT_DYNAMIC  = 6
	SHT_NOTE     = 7
	SHT_NOBITS   = 8
	SHT_REL      = 9
	SHT_DYNSYM   = 11
)

// Dynamic tags relevant to the image builder (spec.md §4.D.2).
const (
	DT_NULL     = 0
	DT_NEEDED   = 1
	DT_PLTGOT   = 3
	DT_HASH     = 4
	DT_STRTAB   = 5
	DT_SYMTAB   = 6
	DT_RELA     = 7
	DT_STRSZ    = 10
	DT_SYMENT   = 11
	DT_INIT     = 12
	DT_FINI     = 13
	DT_SONAME   = 14
	DT_RPATH    = 15
	DT_SYMBOLIC = 16
	DT_REL      = 17
	DT_DEBUG    = 21
	DT_TEXTREL  = 22
	DT_JMPREL   = 23
	DT_BIND_NOW = 24
	DT_RUNPATH  = 29
)

// EI_CLASS / EI_DATA / EI_OSABI offsets within e_ident.
const (
	eiClass   = 4
	eiData    = 5
	eiVersion = 6
	eiOSABI   = 7
)

const (
	ELFCLASS32 = 1
	ELFCLASS64 = 2

	ELFDATA2LSB = 1
	ELFDATA2BSB = 2
)

// File types, ET_*.
const (
	ET_NONE = 0
	ET_REL  = 1
	ET_EXEC = 2
	ET_DYN  = 3
	ET_CORE = 4
)

// Symbol st_info helpers.
func symBind(info uint8) int { return int(info >> 4) }
func symType(info uint8) int { return int(info & 0xf) }

const (
	stbLocal  = 0
	stbGlobal = 1
	stbWeak   = 2

	sttNoType = 0
	sttObject = 1
	sttFunc   = 2
)

// Special section-index values a Symbol's st_shndx can carry.
const (
	shnUndef  = 0
	shnAbs    = 0xfff1
	shnCommon = 0xfff2
)
