package elf

import (
	"bytes"

	"github.com/lunixbochs/struc"

	"github.com/statinf-otawa/gelpp/binary"
	"github.com/statinf-otawa/gelpp/format"
	"github.com/statinf-otawa/gelpp/gelerr"
)

type section struct {
	f           *File
	index       int
	nameOff     uint32
	typ         uint32
	flags       uint64
	addr        uint64
	offset      uint64
	size        uint64
	link        uint32
	info        uint32
	addralign   uint64
	entsize     uint64
	name        string
	contentOnce []byte
}

func (s *section) Name() string      { return s.name }
func (s *section) Type() uint32      { return s.typ }
func (s *section) Flags() uint64     { return s.flags }
func (s *section) Addr() uint64      { return s.addr }
func (s *section) Link() uint32      { return s.link }
func (s *section) EntrySize() uint64 { return s.entsize }
func (s *section) Size() uint64      { return s.size }

func (s *section) Content() ([]byte, error) {
	if s.contentOnce != nil {
		return s.contentOnce, nil
	}
	if s.typ == SHT_NOBITS {
		s.contentOnce = []byte{}
		return s.contentOnce, nil
	}
	raw, ok := s.f.buffer().At(int(s.offset), int(s.size))
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "elf: section %q content out of bounds", s.name)
	}
	if s.typ == SHT_SYMTAB || s.typ == SHT_DYNSYM {
		if s.entsize == 0 || s.size%s.entsize != 0 {
			return nil, gelerr.New(gelerr.KindFormat, "elf: section %q size %d not a multiple of entsize %d", s.name, s.size, s.entsize)
		}
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	s.contentOnce = cp
	return cp, nil
}

// Sections parses and caches e_shnum entries of e_shentsize bytes each
// (spec.md §4.C).
func (f *File) Sections() ([]format.Section, error) {
	if f.sections != nil {
		return f.sections, nil
	}
	if f.shnum == 0 {
		f.sections = []format.Section{}
		return f.sections, nil
	}
	raw, ok := f.buffer().At(int(f.shoff), int(f.shnum)*int(f.shentsize))
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "elf: section header table out of bounds")
	}
	order := stdOrder(f.dec.BigEndian())
	r := bytes.NewReader(raw)
	out := make([]*section, 0, f.shnum)
	for i := 0; i < int(f.shnum); i++ {
		s := &section{f: f, index: i}
		if f.is64 {
			var h Shdr64
			if err := struc.UnpackWithOrder(r, &h, order); err != nil {
				return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated section header %d", i)
			}
			s.nameOff, s.typ, s.flags, s.addr = h.Name, h.Type, h.Flags, h.Addr
			s.offset, s.size, s.link, s.info = h.Offset, h.Size, h.Link, h.Info
			s.addralign, s.entsize = h.Addralign, h.Entsize
		} else {
			var h Shdr32
			if err := struc.UnpackWithOrder(r, &h, order); err != nil {
				return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated section header %d", i)
			}
			s.nameOff, s.typ = h.Name, h.Type
			s.flags, s.addr = uint64(h.Flags), uint64(h.Addr)
			s.offset, s.size = uint64(h.Offset), uint64(h.Size)
			s.link, s.info = h.Link, h.Info
			s.addralign, s.entsize = uint64(h.Addralign), uint64(h.Entsize)
		}
		out = append(out, s)
	}
	// Section names require e_shstrndx's buffer to already be loaded.
	var strIdx = int(f.shstrndx)
	for _, s := range out {
		if strIdx < len(out) {
			name, ok := f.stringInSection(out[strIdx], int(s.nameOff))
			if ok {
				s.name = name
			}
		}
	}
	res := make([]format.Section, len(out))
	for i, s := range out {
		res[i] = s
	}
	f.sections = res
	return res, nil
}

func (f *File) stringInSection(s *section, offset int) (string, bool) {
	content, err := s.Content()
	if err != nil {
		return "", false
	}
	buf := binary.NewBuffer(f.dec, content)
	return buf.CString(offset)
}

// StringAt retrieves the C-string at offset within sectionIndex's content.
// Without a section index (sectionIndex < 0), e_shstrndx is used, per
// spec.md §4.C.
func (f *File) StringAt(offset int, sectionIndex int) (string, bool) {
	idx := sectionIndex
	if idx < 0 {
		idx = int(f.shstrndx)
	}
	secs, err := f.Sections()
	if err != nil || idx < 0 || idx >= len(secs) {
		return "", false
	}
	s := secs[idx].(*section)
	return f.stringInSection(s, offset)
}
