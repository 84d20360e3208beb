package elf

import (
	"bytes"

	"github.com/lunixbochs/struc"

	"github.com/statinf-otawa/gelpp/format"
	"github.com/statinf-otawa/gelpp/gelerr"
)

// Dyns decodes a SHT_DYNAMIC section's content as a sequence of tagged
// entries, stopping at the first DT_NULL (spec.md §4.C "Dynamic entries").
func (f *File) Dyns(sec format.Section) ([]format.Dyn, error) {
	s, ok := sec.(*section)
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "elf: Dyns called with a foreign Section")
	}
	if s.typ != SHT_DYNAMIC {
		return nil, gelerr.New(gelerr.KindInvariant, "elf: Dyns called on a non-SHT_DYNAMIC section")
	}
	content, err := s.Content()
	if err != nil {
		return nil, err
	}
	order := stdOrder(f.dec.BigEndian())
	entsize := int(s.entsize)
	if entsize == 0 {
		if f.is64 {
			entsize = 16
		} else {
			entsize = 8
		}
	}
	r := bytes.NewReader(content)
	count := len(content) / entsize
	var out []format.Dyn
	for i := 0; i < count; i++ {
		var d format.Dyn
		if f.is64 {
			var h Dyn64
			if err := struc.UnpackWithOrder(r, &h, order); err != nil {
				return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated dynamic entry %d", i)
			}
			d = format.Dyn{Tag: h.Tag, Value: h.Val}
		} else {
			var h Dyn32
			if err := struc.UnpackWithOrder(r, &h, order); err != nil {
				return nil, gelerr.Wrap(err, gelerr.KindFormat, "elf: truncated dynamic entry %d", i)
			}
			d = format.Dyn{Tag: int64(h.Tag), Value: uint64(h.Val)}
		}
		out = append(out, d)
		if d.Tag == DT_NULL {
			break
		}
	}
	return out, nil
}
