// Package dwarfline implements the DWARF v2-v5 line-number program
// interpreter from spec.md §4.E: a byte-code virtual machine that
// reconstructs the (address -> file:line:column) mapping out of a
// .debug_line section (plus .debug_str/.debug_line_str for DWARF v5).
//
// No repo in the retrieval pack implements DWARF's line VM from scratch
// (the teacher's go/models/mapped_file.go instead hands the whole section
// to the standard library's debug/dwarf), so this package is grounded
// directly on spec.md §4.E's procedure, written in the teacher's
// straight-line "read a field, validate it, advance" style (see
// go/loader/elf.go) and its pack/unpack pairing idiom
// (go/models/struc_stream.go) adapted to the ULEB/SLEB reads a fixed
// struct layout can't express.
package dwarfline

// LineFlag is a bitmask of the per-row flags spec.md §3 lists on
// LineNumber.
type LineFlag uint8

const (
	FlagIsStmt LineFlag = 1 << iota
	FlagBasicBlock
	FlagPrologueEnd
	FlagEpilogueBegin
)

// SourceFile is spec.md §3's SourceFile entity.
type SourceFile struct {
	Path    string
	ModTime uint64
	Size    uint64
	Units   []*CompilationUnit
}

// LineNumber is spec.md §3's LineNumber entity: one emitted row of the
// line-number program, or (for the last entry of a CompilationUnit) the
// end_sequence sentinel giving the exclusive upper address.
type LineNumber struct {
	Address        uint64
	File           *SourceFile
	Line           int64
	Column         uint64
	Flags          LineFlag
	ISA            uint64
	Discriminator  uint64
	OperationIndex uint64
	EndSequence    bool
}

func (l *LineNumber) IsStmt() bool        { return l.Flags&FlagIsStmt != 0 }
func (l *LineNumber) BasicBlock() bool    { return l.Flags&FlagBasicBlock != 0 }
func (l *LineNumber) PrologueEnd() bool   { return l.Flags&FlagPrologueEnd != 0 }
func (l *LineNumber) EpilogueBegin() bool { return l.Flags&FlagEpilogueBegin != 0 }

// CompilationUnit is spec.md §3's CompilationUnit entity. Lines is ordered
// by non-decreasing address; the last entry is always the end_sequence
// sentinel.
type CompilationUnit struct {
	Lines []*LineNumber
	Files []*SourceFile

	Version             uint16
	AddressSize         uint8
	MinInstructionLen   uint8
	MaxOpsPerInstr      uint8
	DefaultIsStmt       bool
	LineBase            int8
	LineRange           uint8
	OpcodeBase          uint8
}

// BaseAddress is lines[0].Address; TopAddress is the address of the last
// (sentinel) row, per spec.md §3's invariant.
func (cu *CompilationUnit) BaseAddress() uint64 {
	if len(cu.Lines) == 0 {
		return 0
	}
	return cu.Lines[0].Address
}

func (cu *CompilationUnit) TopAddress() uint64 {
	if len(cu.Lines) == 0 {
		return 0
	}
	return cu.Lines[len(cu.Lines)-1].Address
}

// LineAt finds the row whose [Address, next row's Address) range contains
// addr, per the original gel++ CompilationUnit::lineAt. The final row of
// Lines is always an end_sequence sentinel and is never itself returned.
func (cu *CompilationUnit) LineAt(addr uint64) *LineNumber {
	for i := 0; i < len(cu.Lines)-1; i++ {
		if cu.Lines[i].Address <= addr && addr < cu.Lines[i+1].Address {
			return cu.Lines[i]
		}
	}
	return nil
}

// Find collects the [start, end) address ranges within units whose emitted
// row names line in this source file, per the original
// DebugLine::File::find.
func (f *SourceFile) Find(line int64) []AddressRange {
	var out []AddressRange
	for _, cu := range f.Units {
		for i := 0; i < len(cu.Lines)-1; i++ {
			if cu.Lines[i].File == f && cu.Lines[i].Line == line {
				out = append(out, AddressRange{Start: cu.Lines[i].Address, End: cu.Lines[i+1].Address})
			}
		}
	}
	return out
}

// AddressRange is a half-open [Start, End) code range, as returned by
// SourceFile.Find.
type AddressRange struct {
	Start uint64
	End   uint64
}

// DebugLine is spec.md §3's root entity: it owns every CompilationUnit and
// SourceFile it builds, avoiding the cyclic-reference problem spec.md §9
// flags by keeping the back-reference (SourceFile.Units) a plain slice
// appended to as rows naming the file are emitted, rather than a
// shared-ownership pointer cycle.
type DebugLine struct {
	FilesByPath map[string]*SourceFile
	Units       []*CompilationUnit
}

func newDebugLine() *DebugLine {
	return &DebugLine{FilesByPath: make(map[string]*SourceFile)}
}

// LineAt finds the line at the given address, per the original gel++
// DebugLine::lineAt: scan compilation units by their [BaseAddress,
// TopAddress) range, then delegate to the matching unit's LineAt.
func (d *DebugLine) LineAt(addr uint64) *LineNumber {
	for _, cu := range d.Units {
		if cu.BaseAddress() <= addr && addr < cu.TopAddress() {
			return cu.LineAt(addr)
		}
	}
	return nil
}

func (d *DebugLine) internFile(path string, modTime, size uint64) *SourceFile {
	if f, ok := d.FilesByPath[path]; ok {
		return f
	}
	f := &SourceFile{Path: path, ModTime: modTime, Size: size}
	d.FilesByPath[path] = f
	return f
}
