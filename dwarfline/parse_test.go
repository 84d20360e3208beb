package dwarfline

import (
	"testing"

	"github.com/statinf-otawa/gelpp/binary"
)

// buildV2Unit assembles a minimal DWARF v2 .debug_line compilation unit
// declaring one file ("src.c") and running:
//   DW_LNE_set_address 0x100; DW_LNS_advance_line +10; DW_LNS_copy; DW_LNE_end_sequence
// matching spec.md §8 end-to-end scenario 4.
func buildV2Unit() []byte {
	header := []byte{
		0x01,       // minimum_instruction_length
		0x01,       // default_is_stmt
		0xFB,       // line_base = -5
		0x0E,       // line_range = 14
		0x0D,       // opcode_base = 13
		0x00, 0x01, 0x01, 0x01, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x01, // standard_opcode_lengths
		0x00, // directories terminator (empty)
	}
	files := []byte{'s', 'r', 'c', '.', 'c', 0x00, 0x00, 0x00, 0x00, 0x00}
	header = append(header, files...)

	program := []byte{
		0x00, 0x09, 0x02, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // DW_LNE_set_address 0x100
		0x03, 0x0A, // DW_LNS_advance_line +10
		0x01,                   // DW_LNS_copy
		0x00, 0x01, 0x01, // DW_LNE_end_sequence
	}

	var unit []byte
	unit = append(unit, 0x02, 0x00) // version = 2
	headerLength := uint32(len(header))
	unit = append(unit, byte(headerLength), byte(headerLength>>8), byte(headerLength>>16), byte(headerLength>>24))
	unit = append(unit, header...)
	unit = append(unit, program...)

	unitLength := uint32(len(unit))
	out := []byte{byte(unitLength), byte(unitLength >> 8), byte(unitLength >> 16), byte(unitLength >> 24)}
	out = append(out, unit...)
	return out
}

func TestParseV2Unit(t *testing.T) {
	data := buildV2Unit()
	dl, err := Parse(binary.LittleEndian, data, nil, nil, 8)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(dl.Units) != 1 {
		t.Fatalf("expected 1 CU, got %d", len(dl.Units))
	}
	cu := dl.Units[0]
	if len(cu.Lines) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(cu.Lines))
	}
	row := cu.Lines[0]
	if row.Address != 0x100 || row.Line != 11 || row.File == nil || row.File.Path != "src.c" {
		t.Fatalf("unexpected row0: %+v file=%v", row, row.File)
	}
	sentinel := cu.Lines[1]
	if !sentinel.EndSequence || sentinel.Address != 0x100 {
		t.Fatalf("unexpected sentinel: %+v", sentinel)
	}
	if cu.BaseAddress() != 0x100 || cu.TopAddress() != 0x100 {
		t.Fatalf("base/top address: %x/%x", cu.BaseAddress(), cu.TopAddress())
	}
}

// buildV2UnitTwoRows extends buildV2Unit with a second emitted row so
// LineAt/Find have more than one address range to distinguish between.
func buildV2UnitTwoRows() []byte {
	header := []byte{
		0x01, 0x01, 0xFB, 0x0E, 0x0D,
		0x00, 0x01, 0x01, 0x01, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x01,
		0x00,
	}
	files := []byte{'s', 'r', 'c', '.', 'c', 0x00, 0x00, 0x00, 0x00, 0x00}
	header = append(header, files...)

	program := []byte{
		0x00, 0x09, 0x02, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // set_address 0x100
		0x03, 0x0A, // advance_line +10 -> line 11
		0x01,       // copy -> row(0x100, line 11)
		0x02, 0x10, // advance_pc +0x10 -> 0x110
		0x03, 0x05, // advance_line +5 -> line 16
		0x01,       // copy -> row(0x110, line 16)
		0x02, 0x10, // advance_pc +0x10 -> 0x120
		0x00, 0x01, 0x01, // end_sequence -> row(0x120, sentinel)
	}

	var unit []byte
	unit = append(unit, 0x02, 0x00)
	headerLength := uint32(len(header))
	unit = append(unit, byte(headerLength), byte(headerLength>>8), byte(headerLength>>16), byte(headerLength>>24))
	unit = append(unit, header...)
	unit = append(unit, program...)

	unitLength := uint32(len(unit))
	out := []byte{byte(unitLength), byte(unitLength >> 8), byte(unitLength >> 16), byte(unitLength >> 24)}
	out = append(out, unit...)
	return out
}

func TestLineAt(t *testing.T) {
	dl, err := Parse(binary.LittleEndian, buildV2UnitTwoRows(), nil, nil, 8)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cu := dl.Units[0]

	if row := dl.LineAt(0x105); row == nil || row.Line != 11 {
		t.Fatalf("DebugLine.LineAt(0x105) = %+v, want line 11", row)
	}
	if row := cu.LineAt(0x115); row == nil || row.Line != 16 {
		t.Fatalf("CompilationUnit.LineAt(0x115) = %+v, want line 16", row)
	}
	if row := dl.LineAt(0x120); row != nil {
		t.Fatalf("LineAt(0x120) = %+v, want nil (exclusive top address)", row)
	}
	if row := dl.LineAt(0xFF); row != nil {
		t.Fatalf("LineAt(0xFF) = %+v, want nil (below base address)", row)
	}
}

func TestSourceFileFind(t *testing.T) {
	dl, err := Parse(binary.LittleEndian, buildV2UnitTwoRows(), nil, nil, 8)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	f, ok := dl.FilesByPath["src.c"]
	if !ok {
		t.Fatal("expected src.c to be interned")
	}
	ranges := f.Find(11)
	if len(ranges) != 1 || ranges[0].Start != 0x100 || ranges[0].End != 0x110 {
		t.Fatalf("Find(11) = %+v, want [{0x100 0x110}]", ranges)
	}
	if got := f.Find(99); len(got) != 0 {
		t.Fatalf("Find(99) = %+v, want empty", got)
	}
}

func TestParseVersionTooNew(t *testing.T) {
	data := []byte{10, 0, 0, 0, 6, 0} // unit_length=10, version=6
	_, err := Parse(binary.LittleEndian, data, nil, nil, 8)
	if err == nil {
		t.Fatal("expected error for DWARF version 6")
	}
}
