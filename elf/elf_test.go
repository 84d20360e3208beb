package elf

import (
	stdbin "encoding/binary"
	"testing"

	"github.com/statinf-otawa/gelpp/binary"
)

// buildELF32 assembles a minimal little-endian ELF32 executable matching
// spec.md §8 scenario 1: one PT_LOAD at vaddr=0x8000, filesz=memsz=256,
// e_entry=0x8080.
func buildELF32(t *testing.T) []byte {
	t.Helper()
	const (
		ehdrSize = 52
		phdrSize = 32
	)
	buf := make([]byte, ehdrSize+phdrSize+256)
	copy(buf[0:4], Magic)
	buf[eiClass] = ELFCLASS32
	buf[eiData] = ELFDATA2LSB
	buf[eiVersion] = 1

	le := stdbin.LittleEndian
	le.PutUint16(buf[16:18], ET_EXEC) // e_type
	le.PutUint16(buf[18:20], EM_386)  // e_machine
	le.PutUint32(buf[20:24], 1)       // e_version
	le.PutUint32(buf[24:28], 0x8080)  // e_entry
	le.PutUint32(buf[28:32], ehdrSize) // e_phoff
	le.PutUint32(buf[32:36], 0)        // e_shoff
	le.PutUint32(buf[36:40], 0)        // e_flags
	le.PutUint16(buf[40:42], ehdrSize) // e_ehsize
	le.PutUint16(buf[42:44], phdrSize) // e_phentsize
	le.PutUint16(buf[44:46], 1)        // e_phnum
	le.PutUint16(buf[46:48], 0)        // e_shentsize
	le.PutUint16(buf[48:50], 0)        // e_shnum
	le.PutUint16(buf[50:52], 0)        // e_shstrndx

	ph := buf[ehdrSize : ehdrSize+phdrSize]
	le.PutUint32(ph[0:4], PT_LOAD)
	le.PutUint32(ph[4:8], ehdrSize+phdrSize) // p_offset
	le.PutUint32(ph[8:12], 0x8000)           // p_vaddr
	le.PutUint32(ph[12:16], 0x8000)          // p_paddr
	le.PutUint32(ph[16:20], 256)             // p_filesz
	le.PutUint32(ph[20:24], 256)             // p_memsz
	le.PutUint32(ph[24:28], PF_X|PF_R)       // p_flags
	le.PutUint32(ph[28:32], 0x1000)          // p_align
	return buf
}

func TestOpenELF32Scenario1(t *testing.T) {
	data := buildELF32(t)
	f, err := Open(data, "a.out")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Type().String() != "program" {
		t.Fatalf("Type = %v, want program", f.Type())
	}
	if f.AddressWidth() != 32 {
		t.Fatalf("AddressWidth = %v, want 32", f.AddressWidth())
	}
	if f.BigEndian() {
		t.Fatalf("BigEndian = true, want false")
	}
	if f.Entry() != 0x8080 {
		t.Fatalf("Entry = %#x, want 0x8080", f.Entry())
	}
	segs, err := f.Segments()
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("len(Segments) = %d, want 1", len(segs))
	}
	if segs[0].Name() != "code" {
		t.Errorf("Segments[0].Name() = %q, want code", segs[0].Name())
	}
	if segs[0].BaseAddress() != 0x8000 || segs[0].SizeInMemory() != 256 {
		t.Errorf("Segments[0] = base %#x size %d, want base 0x8000 size 256", segs[0].BaseAddress(), segs[0].SizeInMemory())
	}
}

func TestMatchRejectsBadMagic(t *testing.T) {
	if Match([]byte{0, 0, 0, 0}) {
		t.Fatal("Match accepted non-ELF magic")
	}
}

// buildELF32WithSymtab builds an ELF32 file with a single SHT_STRTAB and a
// single SHT_SYMTAB section, matching spec.md §8 scenario 3 exactly: size
// 48, entsize 16 (Sym32 is 16 bytes), three names "a","b","c" at string
// offsets 0,2,4.
func buildELF32WithSymtab(t *testing.T) []byte {
	t.Helper()
	const (
		ehdrSize = 52
		shdrSize = 40
		symSize  = 16
	)
	le := stdbin.LittleEndian

	strtab := []byte{'a', 0, 'b', 0, 'c', 0}
	symtabOff := ehdrSize
	strtabOff := symtabOff + 3*symSize
	shoff := strtabOff + len(strtab)

	buf := make([]byte, shoff+2*shdrSize)
	copy(buf[0:4], Magic)
	buf[eiClass] = ELFCLASS32
	buf[eiData] = ELFDATA2LSB
	buf[eiVersion] = 1

	le.PutUint16(buf[16:18], ET_EXEC)
	le.PutUint16(buf[18:20], EM_386)
	le.PutUint32(buf[20:24], 1)
	le.PutUint32(buf[24:28], 0) // e_entry
	le.PutUint32(buf[28:32], 0) // e_phoff
	le.PutUint32(buf[32:36], uint32(shoff))
	le.PutUint32(buf[36:40], 0) // e_flags
	le.PutUint16(buf[40:42], ehdrSize)
	le.PutUint16(buf[42:44], 0) // e_phentsize
	le.PutUint16(buf[44:46], 0) // e_phnum
	le.PutUint16(buf[46:48], shdrSize)
	le.PutUint16(buf[48:50], 2) // e_shnum
	le.PutUint16(buf[50:52], 1) // e_shstrndx -> section 1 is our strtab

	sym := buf[symtabOff : symtabOff+3*symSize]
	names := []uint32{0, 2, 4}
	for i, nameOff := range names {
		e := sym[i*symSize : (i+1)*symSize]
		le.PutUint32(e[0:4], nameOff)       // st_name
		le.PutUint32(e[4:8], 0x1000+uint32(i*16)) // st_value
		le.PutUint32(e[8:12], 16)                 // st_size
		e[12] = byte(stbGlobal<<4 | sttFunc)      // st_info
		e[13] = 0                                 // st_other
		le.PutUint16(e[14:16], 1)                 // st_shndx
	}

	copy(buf[strtabOff:], strtab)

	// section 0: SHT_SYMTAB
	sh0 := buf[shoff : shoff+shdrSize]
	le.PutUint32(sh0[0:4], 0) // sh_name (unused by the test)
	le.PutUint32(sh0[4:8], SHT_SYMTAB)
	le.PutUint32(sh0[8:12], 0)  // sh_flags
	le.PutUint32(sh0[12:16], 0) // sh_addr
	le.PutUint32(sh0[16:20], uint32(symtabOff))
	le.PutUint32(sh0[20:24], 48) // sh_size
	le.PutUint32(sh0[24:28], 1)  // sh_link -> strtab section index
	le.PutUint32(sh0[28:32], 0)  // sh_info
	le.PutUint32(sh0[32:36], 4)  // sh_addralign
	le.PutUint32(sh0[36:40], 16) // sh_entsize

	// section 1: SHT_STRTAB
	sh1 := buf[shoff+shdrSize : shoff+2*shdrSize]
	le.PutUint32(sh1[0:4], 0)
	le.PutUint32(sh1[4:8], SHT_STRTAB)
	le.PutUint32(sh1[8:12], 0)
	le.PutUint32(sh1[12:16], 0)
	le.PutUint32(sh1[16:20], uint32(strtabOff))
	le.PutUint32(sh1[20:24], uint32(len(strtab)))
	le.PutUint32(sh1[24:28], 0)
	le.PutUint32(sh1[28:32], 0)
	le.PutUint32(sh1[32:36], 1)
	le.PutUint32(sh1[36:40], 0)

	return buf
}

func TestSymbolsScenario3(t *testing.T) {
	data := buildELF32WithSymtab(t)
	f, err := Open(data, "libtest.so")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	table, err := f.Symbols()
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	all := table.All()
	if len(all) != 3 {
		t.Fatalf("len(Symbols) = %d, want 3", len(all))
	}
	for _, name := range []string{"a", "b", "c"} {
		if _, ok := all[name]; !ok {
			t.Errorf("missing symbol %q", name)
		}
	}
	table2, err := f.Symbols()
	if err != nil {
		t.Fatalf("Symbols (second call): %v", err)
	}
	if table2 != table {
		t.Errorf("second Symbols() call returned a different reference")
	}
}

func TestDynsStopsAtNull(t *testing.T) {
	le := stdbin.LittleEndian
	content := make([]byte, 16*3)
	le.PutUint64(content[0:8], DT_NEEDED)
	le.PutUint64(content[8:16], 7)
	le.PutUint64(content[16:24], DT_NULL)
	le.PutUint64(content[24:32], 0)
	// trailing garbage entry must never be reached
	le.PutUint64(content[32:40], DT_NEEDED)
	le.PutUint64(content[40:48], 0xdead)

	f := &File{dec: binary.LittleEndian, is64: true}
	s := &section{f: f, typ: SHT_DYNAMIC, entsize: 16, size: uint64(len(content)), contentOnce: content}
	dyns, err := f.Dyns(s)
	if err != nil {
		t.Fatalf("Dyns: %v", err)
	}
	if len(dyns) != 2 {
		t.Fatalf("len(Dyns) = %d, want 2 (stop at DT_NULL)", len(dyns))
	}
	if dyns[0].Tag != DT_NEEDED || dyns[0].Value != 7 {
		t.Errorf("Dyns[0] = %+v, want {DT_NEEDED 7}", dyns[0])
	}
	if dyns[1].Tag != DT_NULL {
		t.Errorf("Dyns[1].Tag = %d, want DT_NULL", dyns[1].Tag)
	}
}

func TestAlign4(t *testing.T) {
	// regression guard: align4 must round up odd sizes to a 4-byte boundary
	if align4(5) != 8 || align4(4) != 4 || align4(0) != 0 {
		t.Fatalf("align4 mismatch: 5->%d 4->%d 0->%d", align4(5), align4(4), align4(0))
	}
}
