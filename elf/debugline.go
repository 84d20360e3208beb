package elf

import (
	"github.com/statinf-otawa/gelpp/dwarfline"
)

// DebugLines lazily parses .debug_line (with .debug_str/.debug_line_str as
// optional v5 string backing) into a DebugLine, per spec.md §4.E. A file
// with no .debug_line section has no line information: DebugLines returns
// nil, nil rather than an error.
func (f *File) DebugLines() (*dwarfline.DebugLine, error) {
	if f.debugLinesSet {
		return f.debugLines, nil
	}
	secs, err := f.Sections()
	if err != nil {
		return nil, err
	}
	var debugLine, debugStr, debugLineStr []byte
	found := false
	for _, raw := range secs {
		s := raw.(*section)
		switch s.name {
		case ".debug_line":
			found = true
			debugLine, err = s.Content()
		case ".debug_str":
			debugStr, err = s.Content()
		case ".debug_line_str":
			debugLineStr, err = s.Content()
		}
		if err != nil {
			return nil, err
		}
	}
	if !found {
		f.debugLinesSet = true
		return nil, nil
	}
	addrSize := 4
	if f.is64 {
		addrSize = 8
	}
	dl, err := dwarfline.Parse(f.dec, debugLine, debugStr, debugLineStr, addrSize)
	if err != nil {
		return nil, err
	}
	f.debugLines = dl
	f.debugLinesSet = true
	return dl, nil
}
