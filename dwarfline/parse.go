package dwarfline

import (
	"github.com/pkg/errors"

	"github.com/statinf-otawa/gelpp/binary"
	"github.com/statinf-otawa/gelpp/gelerr"
)

// Standard opcodes, spec.md §4.E.
const (
	opCopy             = 1
	opAdvancePC        = 2
	opAdvanceLine      = 3
	opSetFile          = 4
	opSetColumn        = 5
	opNegateStmt       = 6
	opSetBasicBlock    = 7
	opConstAddPC       = 8
	opFixedAdvancePC   = 9
	opSetPrologueEnd   = 10
	opSetEpilogueBegin = 11
	opSetISA           = 12
)

// Extended opcodes, spec.md §4.E.
const (
	extEndSequence     = 1
	extSetAddress      = 2
	extDefineFile      = 3
	extSetDiscriminator = 4
)

// DWARF content-type/form codes relevant to the v5 directory/file tables.
const (
	dwLNCTPath      = 1
	dwFormString    = 0x08
	dwFormStrp      = 0x0e
	dwFormLineStrp  = 0x1f
)

// Parse interprets a .debug_line section (spec.md §4.E), producing one
// CompilationUnit per unit found. dec is the Decoder matching the owning
// File's endianness. defaultAddressSize is used by DW_LNE_set_address for
// DWARF versions below 5, which don't carry an explicit address_size field
// in their unit header (it is the caller's ELF class: 4 or 8).
// debugStr/debugLineStr back DWARF v5's DW_FORM_strp/DW_FORM_line_strp
// directory and file table entries; either may be nil if the File carries
// no such section (an error only if a v5 unit actually references one).
func Parse(dec binary.Decoder, debugLineSection, debugStr, debugLineStr []byte, defaultAddressSize int) (*DebugLine, error) {
	dl := newDebugLine()
	buf := binary.NewBuffer(dec, debugLineSection)
	c := binary.NewCursor(buf)
	strBuf := binary.NewBuffer(dec, debugStr)
	lineStrBuf := binary.NewBuffer(dec, debugLineStr)

	for !c.Ended() {
		cu, err := parseUnit(dl, c, strBuf, lineStrBuf, defaultAddressSize)
		if err != nil {
			return nil, err
		}
		dl.Units = append(dl.Units, cu)
	}
	return dl, nil
}

func parseUnit(dl *DebugLine, c *binary.Cursor, strBuf, lineStrBuf *binary.Buffer, defaultAddressSize int) (*CompilationUnit, error) {
	is64 := false
	var unitLength uint64
	v32, ok := c.ReadU32()
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated unit_length")
	}
	if v32 >= 0xffffff00 {
		is64 = true
		v64, ok := c.ReadU64()
		if !ok {
			return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated 64-bit unit_length")
		}
		unitLength = v64
	} else {
		unitLength = uint64(v32)
	}
	endOffset := c.Offset() + int(unitLength)

	version, ok := c.ReadU16()
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated version")
	}
	if version > 5 {
		return nil, gelerr.New(gelerr.KindUnsupported, "DWARF version > 5 (%d)", version)
	}
	if version < 2 {
		return nil, gelerr.New(gelerr.KindUnsupported, "DWARF version unsupported (%d)", version)
	}

	addressSize := defaultAddressSize
	if version == 5 {
		as, ok := c.ReadU8()
		if !ok {
			return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated address_size")
		}
		addressSize = int(as)
		if _, ok := c.ReadU8(); !ok { // segment_selector_size
			return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated segment_selector_size")
		}
	}

	var headerLength uint64
	if is64 {
		v, ok := c.ReadU64()
		if !ok {
			return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated header_length")
		}
		headerLength = v
	} else {
		v, ok := c.ReadU32()
		if !ok {
			return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated header_length")
		}
		headerLength = uint64(v)
	}
	linesStart := c.Offset() + int(headerLength)

	minInstrLen, ok := c.ReadU8()
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated minimum_instruction_length")
	}
	var maxOps uint8 = 1
	if version >= 4 {
		maxOps, ok = c.ReadU8()
		if !ok {
			return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated maximum_operations_per_instruction")
		}
	}
	defaultIsStmtByte, ok := c.ReadU8()
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated default_is_stmt")
	}
	lineBase, ok := c.ReadI8()
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated line_base")
	}
	lineRange, ok := c.ReadU8()
	if !ok || lineRange == 0 {
		return nil, gelerr.New(gelerr.KindInvariant, "dwarf: invalid line_range")
	}
	opcodeBase, ok := c.ReadU8()
	if !ok || opcodeBase == 0 {
		return nil, gelerr.New(gelerr.KindInvariant, "dwarf: invalid opcode_base")
	}
	stdOpLengths := make([]uint8, opcodeBase-1)
	for i := range stdOpLengths {
		v, ok := c.ReadU8()
		if !ok {
			return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated standard_opcode_lengths")
		}
		stdOpLengths[i] = v
	}

	cu := &CompilationUnit{
		Version:           version,
		AddressSize:       uint8(addressSize),
		MinInstructionLen: minInstrLen,
		MaxOpsPerInstr:    maxOps,
		DefaultIsStmt:     defaultIsStmtByte != 0,
		LineBase:          lineBase,
		LineRange:         lineRange,
		OpcodeBase:        opcodeBase,
	}

	if version < 5 {
		if err := readLegacyTables(dl, cu, c); err != nil {
			return nil, err
		}
	} else {
		if err := readV5Tables(dl, cu, c, strBuf, lineStrBuf, is64); err != nil {
			return nil, err
		}
	}

	if !c.Move(linesStart) {
		return nil, gelerr.New(gelerr.KindInvariant, "dwarf: header_length points out of bounds")
	}

	v := &vm{
		cu:          cu,
		dl:          dl,
		c:           c,
		endOffset:   endOffset,
		stdOpLength: stdOpLengths,
		addressSize: addressSize,
	}
	v.resetRegisters()
	if err := v.run(); err != nil {
		return nil, err
	}
	return cu, nil
}

func readLegacyTables(dl *DebugLine, cu *CompilationUnit, c *binary.Cursor) error {
	directories := []string{"."}
	for {
		s, ok := c.ReadCString()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated directory table")
		}
		if s == "" {
			break
		}
		directories = append(directories, s)
	}
	cu.Files = append(cu.Files, nil) // index 0 unused, per spec.md's file=1 default
	for {
		name, ok := c.ReadCString()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated file table")
		}
		if name == "" {
			break
		}
		dirIdx, ok := c.ReadULEB128()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated file dir index")
		}
		mtime, ok := c.ReadULEB128()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated file mtime")
		}
		size, ok := c.ReadULEB128()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated file size")
		}
		dir := "."
		if int(dirIdx) < len(directories) {
			dir = directories[dirIdx]
		}
		path := name
		if dir != "." && dir != "" {
			path = dir + "/" + name
		}
		f := dl.internFile(path, mtime, size)
		cu.Files = append(cu.Files, f)
	}
	return nil
}

type v5Field struct {
	contentType uint64
	form        uint64
}

func readV5EntryFormat(c *binary.Cursor) ([]v5Field, error) {
	count, ok := c.ReadU8()
	if !ok {
		return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated format_count")
	}
	fields := make([]v5Field, count)
	for i := range fields {
		ct, ok := c.ReadULEB128()
		if !ok {
			return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated content_type")
		}
		form, ok := c.ReadULEB128()
		if !ok {
			return nil, gelerr.New(gelerr.KindInvariant, "dwarf: truncated form")
		}
		fields[i] = v5Field{contentType: ct, form: form}
	}
	return fields, nil
}

func readV5String(c *binary.Cursor, field v5Field, strBuf, lineStrBuf *binary.Buffer, is64 bool) (string, error) {
	if field.contentType != dwLNCTPath {
		return "", gelerr.New(gelerr.KindUnsupported, "dwarf: unsupported line-table content type %d", field.contentType)
	}
	switch field.form {
	case dwFormString:
		s, ok := c.ReadCString()
		if !ok {
			return "", gelerr.New(gelerr.KindInvariant, "dwarf: truncated inline path string")
		}
		return s, nil
	case dwFormStrp, dwFormLineStrp:
		var offset uint64
		if is64 {
			v, ok := c.ReadU64()
			if !ok {
				return "", gelerr.New(gelerr.KindInvariant, "dwarf: truncated strp offset")
			}
			offset = v
		} else {
			v, ok := c.ReadU32()
			if !ok {
				return "", gelerr.New(gelerr.KindInvariant, "dwarf: truncated strp offset")
			}
			offset = uint64(v)
		}
		target := strBuf
		if field.form == dwFormLineStrp {
			target = lineStrBuf
		}
		s, ok := target.CString(int(offset))
		if !ok {
			return "", gelerr.New(gelerr.KindInvariant, "dwarf: strp offset 0x%x out of range", offset)
		}
		return s, nil
	default:
		return "", gelerr.New(gelerr.KindUnsupported, "dwarf: unsupported line-table form 0x%x", field.form)
	}
}

func readV5Tables(dl *DebugLine, cu *CompilationUnit, c *binary.Cursor, strBuf, lineStrBuf *binary.Buffer, is64 bool) error {
	dirFormat, err := readV5EntryFormat(c)
	if err != nil {
		return err
	}
	dirCount, ok := c.ReadULEB128()
	if !ok {
		return gelerr.New(gelerr.KindInvariant, "dwarf: truncated directories_count")
	}
	directories := make([]string, 0, dirCount)
	for i := uint64(0); i < dirCount; i++ {
		var last string
		for _, field := range dirFormat {
			s, err := readV5String(c, field, strBuf, lineStrBuf, is64)
			if err != nil {
				return err
			}
			last = s
		}
		directories = append(directories, last)
	}

	fileFormat, err := readV5EntryFormat(c)
	if err != nil {
		return err
	}
	fileCount, ok := c.ReadULEB128()
	if !ok {
		return gelerr.New(gelerr.KindInvariant, "dwarf: truncated file_names_count")
	}
	for i := uint64(0); i < fileCount; i++ {
		var last string
		for _, field := range fileFormat {
			s, err := readV5String(c, field, strBuf, lineStrBuf, is64)
			if err != nil {
				return err
			}
			last = s
		}
		f := dl.internFile(last, 0, 0)
		cu.Files = append(cu.Files, f)
	}
	return nil
}

// vm is the line-number-program state machine, spec.md §4.E.
type vm struct {
	cu          *CompilationUnit
	dl          *DebugLine
	c           *binary.Cursor
	endOffset   int
	stdOpLength []uint8
	addressSize int

	address       uint64
	opIndex       uint64
	file          int64
	line          int64
	column        uint64
	isStmt        bool
	basicBlock    bool
	endSeq        bool
	prologueEnd   bool
	epilogueBegin bool
	isa           uint64
	discriminator uint64
}

func (v *vm) resetRegisters() {
	v.address = 0
	v.opIndex = 0
	v.file = 1
	v.line = 1
	v.column = 0
	v.isStmt = v.cu.DefaultIsStmt
	v.basicBlock = false
	v.endSeq = false
	v.prologueEnd = false
	v.epilogueBegin = false
	v.isa = 0
	v.discriminator = 0
}

func (v *vm) advancePC(operationAdvance uint64) {
	minLen := uint64(v.cu.MinInstructionLen)
	maxOps := uint64(v.cu.MaxOpsPerInstr)
	if maxOps <= 1 {
		v.address += minLen * operationAdvance
		return
	}
	v.address += minLen * ((v.opIndex + operationAdvance) / maxOps)
	v.opIndex = (v.opIndex + operationAdvance) % maxOps
}

func (v *vm) resolveFile() *SourceFile {
	idx := int(v.file)
	if idx < 0 || idx >= len(v.cu.Files) {
		return nil
	}
	return v.cu.Files[idx]
}

func (v *vm) emit() {
	f := v.resolveFile()
	var flags LineFlag
	if v.isStmt {
		flags |= FlagIsStmt
	}
	if v.basicBlock {
		flags |= FlagBasicBlock
	}
	if v.prologueEnd {
		flags |= FlagPrologueEnd
	}
	if v.epilogueBegin {
		flags |= FlagEpilogueBegin
	}
	row := &LineNumber{
		Address:        v.address,
		File:           f,
		Line:           v.line,
		Column:         v.column,
		Flags:          flags,
		ISA:            v.isa,
		Discriminator:  v.discriminator,
		OperationIndex: v.opIndex,
		EndSequence:    v.endSeq,
	}
	v.cu.Lines = append(v.cu.Lines, row)
	if f != nil && (len(f.Units) == 0 || f.Units[len(f.Units)-1] != v.cu) {
		f.Units = append(f.Units, v.cu)
	}
}

// clearAfterRow implements the "clear basic_block, prologue_end,
// epilogue_begin, discriminator" step DW_LNS_copy and special opcodes both
// perform after emitting a row (spec.md §4.E).
func (v *vm) clearAfterRow() {
	v.basicBlock = false
	v.prologueEnd = false
	v.epilogueBegin = false
	v.discriminator = 0
}

func (v *vm) run() error {
	for v.c.Offset() < v.endOffset {
		opcode, ok := v.c.ReadU8()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated opcode")
		}
		switch {
		case opcode == 0:
			if err := v.extended(); err != nil {
				return err
			}
		case opcode < v.cu.OpcodeBase:
			if err := v.standard(opcode); err != nil {
				return err
			}
		default:
			v.special(opcode)
		}
		if v.c.Offset() > v.endOffset {
			return gelerr.New(gelerr.KindInvariant, "dwarf: opcode program exceeded unit length")
		}
	}
	return nil
}

func (v *vm) extended() error {
	length, ok := v.c.ReadULEB128()
	if !ok {
		return gelerr.New(gelerr.KindInvariant, "dwarf: truncated extended opcode length")
	}
	start := v.c.Offset()
	sub, ok := v.c.ReadU8()
	if !ok {
		return gelerr.New(gelerr.KindInvariant, "dwarf: truncated extended sub-opcode")
	}
	switch sub {
	case extEndSequence:
		v.endSeq = true
		v.emit()
		v.resetRegisters()
	case extSetAddress:
		addr, ok := readAddress(v.c, v.addressSize)
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNE_set_address")
		}
		v.address = addr
		v.opIndex = 0
	case extDefineFile:
		name, ok := v.c.ReadCString()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNE_define_file name")
		}
		_, ok = v.c.ReadULEB128() // dir index, unused: the name is interned as given, without a directory join
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNE_define_file dir")
		}
		mtime, _ := v.c.ReadULEB128()
		size, _ := v.c.ReadULEB128()
		f := v.dl.internFile(name, mtime, size)
		v.cu.Files = append(v.cu.Files, f)
	case extSetDiscriminator:
		d, ok := v.c.ReadULEB128()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNE_set_discriminator")
		}
		v.discriminator = d
	default:
		return gelerr.New(gelerr.KindUnsupported, "dwarf: unknown extended opcode %d", sub)
	}
	if !v.c.Move(start + int(length)) {
		return gelerr.New(gelerr.KindInvariant, "dwarf: extended opcode length out of bounds")
	}
	return nil
}

func readAddress(c *binary.Cursor, size int) (uint64, bool) {
	switch size {
	case 2:
		v, ok := c.ReadU16()
		return uint64(v), ok
	case 4:
		v, ok := c.ReadU32()
		return uint64(v), ok
	case 8:
		return c.ReadU64()
	default:
		return c.ReadU64()
	}
}

func (v *vm) standard(opcode uint8) error {
	switch opcode {
	case opCopy:
		v.emit()
		v.clearAfterRow()
	case opAdvancePC:
		adv, ok := v.c.ReadULEB128()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNS_advance_pc")
		}
		v.advancePC(adv)
	case opAdvanceLine:
		delta, ok := v.c.ReadSLEB128()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNS_advance_line")
		}
		v.line += delta
	case opSetFile:
		f, ok := v.c.ReadULEB128()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNS_set_file")
		}
		v.file = int64(f)
	case opSetColumn:
		col, ok := v.c.ReadULEB128()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNS_set_column")
		}
		v.column = col
	case opNegateStmt:
		v.isStmt = !v.isStmt
	case opSetBasicBlock:
		v.basicBlock = true
	case opConstAddPC:
		adjusted := uint64(255 - v.cu.OpcodeBase)
		v.advancePC(adjusted / uint64(v.cu.LineRange))
	case opFixedAdvancePC:
		operand, ok := v.c.ReadU16()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNS_fixed_advance_pc")
		}
		v.address += uint64(operand)
		v.opIndex = 0
	case opSetPrologueEnd:
		v.prologueEnd = true
	case opSetEpilogueBegin:
		v.epilogueBegin = true
	case opSetISA:
		isa, ok := v.c.ReadULEB128()
		if !ok {
			return gelerr.New(gelerr.KindInvariant, "dwarf: truncated DW_LNS_set_isa")
		}
		v.isa = isa
	default:
		n := v.stdOpLength[opcode-1]
		for i := 0; i < int(n); i++ {
			if _, ok := v.c.ReadULEB128(); !ok {
				return errors.Errorf("dwarf: truncated vendor standard opcode %d operand", opcode)
			}
		}
	}
	return nil
}

func (v *vm) special(opcode uint8) {
	adjusted := opcode - v.cu.OpcodeBase
	v.line += int64(v.cu.LineBase) + int64(adjusted%v.cu.LineRange)
	v.advancePC(uint64(adjusted / v.cu.LineRange))
	v.emit()
	v.clearAfterRow()
}
