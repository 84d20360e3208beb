package image

import (
	stdbin "encoding/binary"

	"github.com/statinf-otawa/gelpp/gelerr"
)

// buildStack synthesizes the initial process stack per spec.md §4.D.2's
// exact layout: argc/argv-pointer/envp-pointer, then the argv and envp
// pointer arrays (each zero-terminated), then the auxv pairs (zero-pair
// terminated), then the argv and envp string bytes themselves. Every
// cell is a 4-byte word, matching the layout table literally.
func (b *builder) buildStack() error {
	cfg := b.cfg
	argc := len(cfg.Arg)
	envc := len(cfg.Env)
	auxc := len(cfg.Auxv)

	var strBytes []byte
	argOffsets := make([]uint64, argc)
	for i, a := range cfg.Arg {
		argOffsets[i] = uint64(len(strBytes))
		strBytes = append(strBytes, a...)
		strBytes = append(strBytes, 0)
	}
	envOffsets := make([]uint64, envc)
	for i, e := range cfg.Env {
		envOffsets[i] = uint64(len(strBytes))
		strBytes = append(strBytes, e...)
		strBytes = append(strBytes, 0)
	}

	headerSize := uint64(12 + 4*(argc+1) + 4*(envc+1) + 8*(auxc+1))
	total := headerSize + uint64(len(strBytes))
	if total > cfg.StackSize {
		return gelerr.New(gelerr.KindInvariant, "image: stack size too small")
	}

	base := cfg.StackAddr
	if !cfg.StackAt {
		base = 0x80000000 - cfg.StackSize
	}

	buf := make([]byte, cfg.StackSize)
	headerStart := cfg.StackSize - total
	stringsStart := headerStart + headerSize
	copy(buf[stringsStart:], strBytes)

	var order stdbin.ByteOrder = stdbin.LittleEndian
	if b.img.ProgramFile.BigEndian() {
		order = stdbin.BigEndian
	}

	put := func(pos uint64, v uint32) { order.PutUint32(buf[pos:pos+4], v) }

	pos := headerStart
	put(pos, uint32(argc))
	pos += 4
	argvPtrSlot := pos
	pos += 4
	envpPtrSlot := pos
	pos += 4

	argvArrayAddr := base + pos
	for i := 0; i < argc; i++ {
		put(pos, uint32(base+stringsStart+argOffsets[i]))
		pos += 4
	}
	put(pos, 0)
	pos += 4

	envpArrayAddr := base + pos
	for i := 0; i < envc; i++ {
		put(pos, uint32(base+stringsStart+envOffsets[i]))
		pos += 4
	}
	put(pos, 0)
	pos += 4

	for _, a := range cfg.Auxv {
		put(pos, uint32(a.Type))
		pos += 4
		put(pos, uint32(a.Value))
		pos += 4
	}
	put(pos, 0)
	pos += 4
	put(pos, 0)
	pos += 4

	put(argvPtrSlot, uint32(argvArrayAddr))
	put(envpPtrSlot, uint32(envpArrayAddr))

	seg := &Segment{
		BaseAddress: base,
		Buffer:      buf,
		Writable:    true,
		Readable:    true,
		OwnMemory:   true,
		Name:        "stack",
	}
	b.img.Segments = append(b.img.Segments, seg)
	b.img.SP = base + headerStart
	b.img.StackSegment = seg
	return nil
}
