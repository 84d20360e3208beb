package elf

import "github.com/statinf-otawa/gelpp/format"

// segment adapts a PT_LOAD programHeader to format.Segment, naming it by
// its permission bits the way the teacher's go/loader/elf.go names mapped
// regions ("code"/"data"/"rodata") rather than by section membership.
type segment struct {
	ph *programHeader
}

func (s *segment) Name() string {
	switch {
	case s.ph.flags&PF_X != 0:
		return "code"
	case s.ph.flags&PF_W != 0:
		return "data"
	case s.ph.flags&PF_R != 0:
		return "rodata"
	default:
		return "unknown"
	}
}

func (s *segment) BaseAddress() uint64   { return s.ph.vaddr }
func (s *segment) LoadAddress() uint64   { return s.ph.vaddr }
func (s *segment) SizeInMemory() uint64  { return s.ph.memsz }
func (s *segment) Alignment() uint64     { return s.ph.align }
func (s *segment) Executable() bool      { return s.ph.flags&PF_X != 0 }
func (s *segment) Writable() bool        { return s.ph.flags&PF_W != 0 }
func (s *segment) HasFileContent() bool  { return s.ph.filesz > 0 }
func (s *segment) Content() ([]byte, error) { return s.ph.Content() }

// Segments derives one Segment per PT_LOAD program header (spec.md §4.C),
// in program-header order.
func (f *File) Segments() ([]format.Segment, error) {
	phs, err := f.ProgramHeaders()
	if err != nil {
		return nil, err
	}
	var out []format.Segment
	for _, raw := range phs {
		ph := raw.(*programHeader)
		if ph.typ != PT_LOAD {
			continue
		}
		out = append(out, &segment{ph: ph})
	}
	return out, nil
}
