package elf

import (
	"bytes"

	"github.com/lunixbochs/struc"

	"github.com/statinf-otawa/gelpp/binary"
	"github.com/statinf-otawa/gelpp/format"
	"github.com/statinf-otawa/gelpp/gelerr"
)

// programHeader wraps one Phdr32/Phdr64 entry. Content is read lazily,
// zero-filling the tail when p_memsz > p_filesz (spec.md §4.C).
type programHeader struct {
	f           *File
	typ         uint32
	offset      uint64
	vaddr       uint64
	paddr       uint64
	filesz      uint64
	memsz       uint64
	flags       uint32
	align       uint64
	contentOnce []byte
}

func (p *programHeader) Type() uint32            { return p.typ }
func (p *programHeader) Offset() uint64          { return p.offset }
func (p *programHeader) VirtualAddress() uint64  { return p.vaddr }
func (p *programHeader) PhysicalAddress() uint64 { return p.paddr }
func (p *programHeader) FileSize() uint64        { return p.filesz }
func (p *programHeader) MemorySize() uint64      { return p.memsz }
func (p *programHeader) Flags() uint32           { return p.flags }
func (p *programHeader) Alignment() uint64       { return p.align }

func (p *programHeader) Content() ([]byte, error) {
	if p.contentOnce != nil {
		return p.contentOnce, nil
	}
	buf := make([]byte, p.memsz)
	fileBytes, ok := p.f.buffer().At(int(p.offset), int(p.filesz))
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "elf: program header content out of bounds")
	}
	copy(buf, fileBytes)
	p.contentOnce = buf
	return buf, nil
}

// ProgramHeaders parses and caches e_phnum entries of e_phentsize bytes
// each, per spec.md §4.C ("loaded as one read... each entry is
// endianness-fixed in place").
func (f *File) ProgramHeaders() ([]format.ProgramHeader, error) {
	if f.programHeaders != nil {
		return f.programHeaders, nil
	}
	if f.phnum == 0 {
		f.programHeaders = []format.ProgramHeader{}
		return f.programHeaders, nil
	}
	raw, ok := f.buffer().At(int(f.phoff), int(f.phnum)*int(f.phentsize))
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "elf: program header table out of bounds")
	}
	order := stdOrder(f.dec.BigEndian())
	r := bytes.NewReader(raw)
	out := make([]format.ProgramHeader, 0, f.phnum)
	for i := 0; i < int(f.phnum); i++ {
		ph := &programHeader{f: f}
		if f.is64 {
			var h Phdr64
			if err := struc.UnpackWithOrder(r, &h, order); err != nil {
				return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated program header %d", i)
			}
			ph.typ, ph.flags, ph.offset, ph.vaddr, ph.paddr = h.Type, h.Flags, h.Offset, h.Vaddr, h.Paddr
			ph.filesz, ph.memsz, ph.align = h.Filesz, h.Memsz, h.Align
		} else {
			var h Phdr32
			if err := struc.UnpackWithOrder(r, &h, order); err != nil {
				return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated program header %d", i)
			}
			ph.typ, ph.flags = h.Type, h.Flags
			ph.offset, ph.vaddr, ph.paddr = uint64(h.Offset), uint64(h.Vaddr), uint64(h.Paddr)
			ph.filesz, ph.memsz, ph.align = uint64(h.Filesz), uint64(h.Memsz), uint64(h.Align)
		}
		out = append(out, ph)
	}
	f.programHeaders = out
	return out, nil
}

// Notes iterates a PT_NOTE program header's content as a sequence of
// {namesz, descsz, type, name, desc} records, each padded to 4 bytes
// (spec.md §4.C "Notes iterator").
func (f *File) Notes(raw format.ProgramHeader) ([]format.Note, error) {
	ph, ok := raw.(*programHeader)
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "elf: Notes called with a foreign ProgramHeader")
	}
	if ph.typ != PT_NOTE {
		return nil, gelerr.New(gelerr.KindInvariant, "elf: Notes called on a non-PT_NOTE header")
	}
	content, err := ph.Content()
	if err != nil {
		return nil, err
	}
	buf := binary.NewBuffer(f.dec, content)
	c := binary.NewCursor(buf)
	var notes []format.Note
	for !c.Ended() {
		namesz, ok := c.ReadU32()
		if !ok {
			return nil, gelerr.New(gelerr.KindFormat, "elf: malformed note (namesz)")
		}
		descsz, ok := c.ReadU32()
		if !ok {
			return nil, gelerr.New(gelerr.KindFormat, "elf: malformed note (descsz)")
		}
		typ, ok := c.ReadU32()
		if !ok {
			return nil, gelerr.New(gelerr.KindFormat, "elf: malformed note (type)")
		}
		nameBytes, ok := c.ReadBytes(int(align4(namesz)))
		if !ok {
			return nil, gelerr.New(gelerr.KindFormat, "elf: malformed note (name)")
		}
		name := trimPadding(nameBytes[:min32(namesz, uint32(len(nameBytes)))])
		desc, ok := c.ReadBytes(int(align4(descsz)))
		if !ok {
			return nil, gelerr.New(gelerr.KindFormat, "elf: malformed note (desc)")
		}
		notes = append(notes, format.Note{Name: name, Type: typ, Desc: desc[:descsz]})
	}
	return notes, nil
}

func align4(n uint32) uint32 {
	return (n + 3) &^ 3
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

func trimPadding(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
