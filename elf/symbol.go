package elf

import (
	"bytes"

	"github.com/lunixbochs/struc"

	"github.com/statinf-otawa/gelpp/format"
	"github.com/statinf-otawa/gelpp/gelerr"
)

type symbol struct {
	name    string
	value   uint64
	size    uint64
	typ     format.SymbolType
	binding format.SymbolBinding
	shndx   uint16
}

func (s *symbol) Name() string                  { return s.name }
func (s *symbol) Value() uint64                  { return s.value }
func (s *symbol) Size() uint64                   { return s.size }
func (s *symbol) Type() format.SymbolType        { return s.typ }
func (s *symbol) Binding() format.SymbolBinding   { return s.binding }

func (s *symbol) SectionIndexKind() format.SectionIndexKind {
	switch s.shndx {
	case shnUndef:
		return format.SectionIndexUndef
	case shnAbs:
		return format.SectionIndexAbs
	case shnCommon:
		return format.SectionIndexCommon
	default:
		return format.SectionIndexLiteral
	}
}

func (s *symbol) SectionIndex() int { return int(s.shndx) }

func symTypeOf(info uint8) format.SymbolType {
	switch symType(info) {
	case sttFunc:
		return format.SymFunc
	case sttObject:
		return format.SymData
	case sttNoType:
		return format.SymNone
	default:
		return format.SymOther
	}
}

func symBindOf(info uint8) format.SymbolBinding {
	switch symBind(info) {
	case stbLocal:
		return format.BindLocal
	case stbGlobal:
		return format.BindGlobal
	case stbWeak:
		return format.BindWeak
	default:
		return format.BindOther
	}
}

// symbolTable is the spec.md §3 SymbolTable: a name-keyed map with
// last-write-wins semantics across repeated names, plus (implicitly) the
// raw bytes of the SHT_SYMTAB/SHT_DYNSYM sections it was built from kept
// alive through the owning File (spec.md: "a list of owned raw buffers
// that back the names" — here the buffers are the Sections themselves,
// which the File already owns).
type symbolTable struct {
	byName map[string]format.Symbol
	sorted []*symbol
}

func (t *symbolTable) Lookup(name string) (format.Symbol, bool) {
	s, ok := t.byName[name]
	return s, ok
}

func (t *symbolTable) All() map[string]format.Symbol { return t.byName }

// Nearest implements the SUPPLEMENTED nearest-symbol lookup (SPEC_FULL.md),
// grounded on the teacher's MappedFile.Symbolicate / ElfLoader.Symbolicate.
func (t *symbolTable) Nearest(addr uint64) (format.Symbol, uint64, bool) {
	var best *symbol
	var bestDist uint64
	for _, s := range t.sorted {
		if s.value == 0 || addr < s.value {
			continue
		}
		dist := addr - s.value
		if s.size != 0 && dist >= s.size {
			continue
		}
		if best == nil || dist < bestDist {
			best = s
			bestDist = dist
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestDist, true
}

// Symbols is synthesized lazily by scanning every SHT_SYMTAB/SHT_DYNSYM
// section (spec.md §4.C "Symbol table"). Subsequent calls return the same
// map (spec.md §8 invariant 7).
func (f *File) Symbols() (format.SymbolTable, error) {
	if f.symbols != nil {
		return f.symbols, nil
	}
	secs, err := f.Sections()
	if err != nil {
		return nil, err
	}
	order := stdOrder(f.dec.BigEndian())
	table := &symbolTable{byName: make(map[string]format.Symbol)}
	for _, raw := range secs {
		sec := raw.(*section)
		if sec.typ != SHT_SYMTAB && sec.typ != SHT_DYNSYM {
			continue
		}
		content, err := sec.Content()
		if err != nil {
			return nil, err
		}
		entsize := int(sec.entsize)
		if entsize == 0 {
			return nil, gelerr.New(gelerr.KindFormat, "elf: symbol section %q has zero entsize", sec.name)
		}
		count := len(content) / entsize
		r := bytes.NewReader(content)
		for i := 0; i < count; i++ {
			var sym *symbol
			if f.is64 {
				var h Sym64
				if err := struc.UnpackWithOrder(r, &h, order); err != nil {
					return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated symbol %d in %q", i, sec.name)
				}
				name, _ := f.StringAt(int(h.Name), int(sec.link))
				sym = &symbol{name: name, value: h.Value, size: h.Size, typ: symTypeOf(h.Info), binding: symBindOf(h.Info), shndx: h.Shndx}
			} else {
				var h Sym32
				if err := struc.UnpackWithOrder(r, &h, order); err != nil {
					return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated symbol %d in %q", i, sec.name)
				}
				name, _ := f.StringAt(int(h.Name), int(sec.link))
				sym = &symbol{name: name, value: uint64(h.Value), size: uint64(h.Size), typ: symTypeOf(h.Info), binding: symBindOf(h.Info), shndx: h.Shndx}
			}
			if sym.name != "" {
				table.byName[sym.name] = sym
			}
			table.sorted = append(table.sorted, sym)
		}
	}
	f.symbols = table
	return table, nil
}
