package image

import "github.com/statinf-otawa/gelpp/format"

// BuildSimple implements spec.md §4.D.1: one ImageSegment per PT_LOAD
// segment, at the segment's own load address, with a fresh owned copy of
// its bytes zero-filled to size-in-memory. No dynamic resolution, no
// stack, no relocation.
func BuildSimple(f format.File) (*Image, error) {
	segs, err := f.Segments()
	if err != nil {
		return nil, err
	}
	img := &Image{ProgramFile: f, Units: []UnitRef{{Path: f.Path(), File: f, BaseAddress: 0}}}
	for _, s := range segs {
		content, err := s.Content()
		if err != nil {
			return nil, err
		}
		buf := make([]byte, s.SizeInMemory())
		copy(buf, content)
		img.Segments = append(img.Segments, &Segment{
			File:        f,
			Source:      s,
			BaseAddress: s.BaseAddress(),
			Buffer:      buf,
			Writable:    s.Writable(),
			Executable:  s.Executable(),
			Readable:    true,
			OwnMemory:   true,
			Name:        s.Name(),
		})
	}
	return img, nil
}
