// Package image implements the image builder from spec.md §4.D: laying
// out loadable segments at virtual addresses, optionally resolving
// dynamically-needed libraries under a Unix-like search algorithm, and
// synthesizing an initial process stack.
//
// Grounded on the teacher's go/usercorn.go (mapMemory/setupStack/
// pushStrings sequencing) and go/models/elf_auxv.go (auxv vector packed
// with github.com/lunixbochs/struc against an explicit byte order), with
// go/models/segment.go's Overlaps generalized onto the spec's own
// ImageSegment shape, and Image.At ported from
// _examples/original_source/src/gel_Image.cpp's Image::at.
package image

import (
	"golang.org/x/sys/unix"

	"github.com/statinf-otawa/gelpp/format"
)

// Segment is one mapped region of an Image, owned by the Image itself
// when OwnMemory is set (spec.md §3 ImageSegment: "own-memory flag
// records which").
type Segment struct {
	File           format.File
	Source         format.Segment
	BaseAddress    uint64
	Buffer         []byte
	Writable       bool
	Executable     bool
	Readable       bool
	OwnMemory      bool
	Name           string
}

func (s *Segment) TopAddress() uint64 { return s.BaseAddress + uint64(len(s.Buffer)) }

// Contains reports whether address falls in this segment's
// [BaseAddress, TopAddress) range.
func (s *Segment) Contains(address uint64) bool {
	return s.BaseAddress <= address && address < s.TopAddress()
}

// Overlaps reports whether s and other's [BaseAddress, TopAddress) ranges
// intersect, grounded on the teacher's go/models/segment.go Segment.Overlaps.
func (s *Segment) Overlaps(other *Segment) bool {
	return s.BaseAddress < other.TopAddress() && other.BaseAddress < s.TopAddress()
}

// Prot translates the Readable/Writable/Executable flags into the
// PROT_READ/PROT_WRITE/PROT_EXEC bitmask a caller would pass to mmap(2)
// when actually mapping this segment into a process.
func (s *Segment) Prot() int {
	var prot int
	if s.Readable {
		prot |= unix.PROT_READ
	}
	if s.Writable {
		prot |= unix.PROT_WRITE
	}
	if s.Executable {
		prot |= unix.PROT_EXEC
	}
	return prot
}

// Image is the spec.md §3 root result of a build: the program File, every
// (File, base-address) pair the builder mapped, and the ordered list of
// Segments.
type Image struct {
	ProgramFile format.File
	Units       []UnitRef
	Segments    []*Segment

	// Populated by BuildUnix when StackAlloc is set.
	SP           uint64
	StackSegment *Segment
}

// UnitRef is the (file, base-address) pairing recorded for every Unit the
// Unix builder mapped, per spec.md §3 Image.
type UnitRef struct {
	Path        string
	File        format.File
	BaseAddress uint64
}

// At finds the segment containing address, per the original gel++
// Image::at ("find the segment at the given address"). Returns nil if no
// mapped segment covers it.
func (img *Image) At(address uint64) *Segment {
	for _, s := range img.Segments {
		if s.Contains(address) {
			return s
		}
	}
	return nil
}
