package image

import (
	stdbin "encoding/binary"
	"testing"

	"github.com/statinf-otawa/gelpp/elf"
	"github.com/statinf-otawa/gelpp/gelerr"
)

// buildMinimalELF32 assembles an ELF32 header with phnum PT_LOAD entries
// (each vaddr=0x1000*(i+1), filesz=memsz=0x100) and no sections.
func buildMinimalELF32(t *testing.T, loads int) []byte {
	t.Helper()
	const (
		ehdrSize = 52
		phdrSize = 32
	)
	buf := make([]byte, ehdrSize+loads*phdrSize+loads*0x100)
	copy(buf[0:4], elf.Magic)
	buf[4] = elf.ELFCLASS32
	buf[5] = elf.ELFDATA2LSB
	buf[6] = 1

	le := stdbin.LittleEndian
	le.PutUint16(buf[16:18], elf.ET_EXEC)
	le.PutUint16(buf[18:20], elf.EM_386)
	le.PutUint32(buf[20:24], 1)
	le.PutUint32(buf[24:28], 0) // e_entry
	le.PutUint32(buf[28:32], ehdrSize)
	le.PutUint32(buf[32:36], 0)
	le.PutUint32(buf[36:40], 0)
	le.PutUint16(buf[40:42], ehdrSize)
	le.PutUint16(buf[42:44], phdrSize)
	le.PutUint16(buf[44:46], uint16(loads))
	le.PutUint16(buf[46:48], 0)
	le.PutUint16(buf[48:50], 0)
	le.PutUint16(buf[50:52], 0)

	contentOff := ehdrSize + loads*phdrSize
	for i := 0; i < loads; i++ {
		ph := buf[ehdrSize+i*phdrSize : ehdrSize+(i+1)*phdrSize]
		vaddr := uint32(0x1000 * (i + 1))
		off := uint32(contentOff + i*0x100)
		le.PutUint32(ph[0:4], elf.PT_LOAD)
		le.PutUint32(ph[4:8], off)
		le.PutUint32(ph[8:12], vaddr)
		le.PutUint32(ph[12:16], vaddr)
		le.PutUint32(ph[16:20], 0x100)
		le.PutUint32(ph[20:24], 0x100)
		le.PutUint32(ph[24:28], elf.PF_R|elf.PF_X)
		le.PutUint32(ph[28:32], 0x1000)
	}
	return buf
}

func TestBuildSimpleSegmentBasesMatchPTLoad(t *testing.T) {
	data := buildMinimalELF32(t, 2)
	f, err := elf.Open(data, "a.out")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	img, err := BuildSimple(f)
	if err != nil {
		t.Fatalf("BuildSimple: %v", err)
	}
	if len(img.Segments) != 2 {
		t.Fatalf("len(Segments) = %d, want 2", len(img.Segments))
	}
	want := map[uint64]bool{0x1000: true, 0x2000: true}
	got := map[uint64]bool{}
	for _, s := range img.Segments {
		got[s.BaseAddress] = true
		if len(s.Buffer) != 0x100 {
			t.Errorf("segment at %#x has size %d, want 0x100", s.BaseAddress, len(s.Buffer))
		}
	}
	for addr := range want {
		if !got[addr] {
			t.Errorf("missing segment base %#x", addr)
		}
	}
}

func TestImageAt(t *testing.T) {
	data := buildMinimalELF32(t, 2)
	f, err := elf.Open(data, "a.out")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	img, err := BuildSimple(f)
	if err != nil {
		t.Fatalf("BuildSimple: %v", err)
	}
	if s := img.At(0x1050); s == nil || s.BaseAddress != 0x1000 {
		t.Fatalf("At(0x1050) = %+v, want segment at 0x1000", s)
	}
	if s := img.At(0x20ff); s == nil || s.BaseAddress != 0x2000 {
		t.Fatalf("At(0x20ff) = %+v, want segment at 0x2000", s)
	}
	if s := img.At(0x3000); s != nil {
		t.Fatalf("At(0x3000) = %+v, want nil", s)
	}
}

func TestSegmentOverlaps(t *testing.T) {
	a := &Segment{BaseAddress: 0x1000, Buffer: make([]byte, 0x100)}
	b := &Segment{BaseAddress: 0x1080, Buffer: make([]byte, 0x100)}
	c := &Segment{BaseAddress: 0x2000, Buffer: make([]byte, 0x100)}
	if !a.Overlaps(b) {
		t.Error("expected a to overlap b")
	}
	if a.Overlaps(c) {
		t.Error("expected a not to overlap c")
	}
}

func TestBuildUnixStackScenario5(t *testing.T) {
	data := buildMinimalELF32(t, 0)
	f, err := elf.Open(data, "./a")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cfg := &BuildConfig{
		Arg:        []string{"./a", "x"},
		Env:        []string{"A=1"},
		StackAlloc: true,
		StackSize:  4096,
	}
	img, err := BuildUnix(f, cfg)
	if err != nil {
		t.Fatalf("BuildUnix: %v", err)
	}
	if img.StackSegment == nil {
		t.Fatal("no stack segment built")
	}
	if !img.StackSegment.Writable {
		t.Error("stack segment not writable")
	}
	if len(img.StackSegment.Buffer) != 4096 {
		t.Errorf("stack segment size = %d, want 4096", len(img.StackSegment.Buffer))
	}
	wantBase := uint64(0x80000000 - 4096)
	if img.StackSegment.BaseAddress != wantBase {
		t.Errorf("stack base = %#x, want %#x", img.StackSegment.BaseAddress, wantBase)
	}
	// initial stack pointer points at a cell equal to argc (2).
	off := img.SP - img.StackSegment.BaseAddress
	argc := stdbin.LittleEndian.Uint32(img.StackSegment.Buffer[off : off+4])
	if argc != 2 {
		t.Errorf("argc cell = %d, want 2", argc)
	}
}

func TestBuildUnixStackTooSmall(t *testing.T) {
	data := buildMinimalELF32(t, 0)
	f, err := elf.Open(data, "./a")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	cfg := &BuildConfig{
		Arg:        []string{"./a"},
		StackAlloc: true,
		StackSize:  4,
	}
	if _, err := BuildUnix(f, cfg); err == nil {
		t.Fatal("expected \"stack size too small\" error, got nil")
	}
}

func TestExpandTokenOrigin(t *testing.T) {
	b := &builder{cfg: &BuildConfig{IsLinux: true}, manager: gelerr.DefaultManager()}
	got := b.expandToken("$ORIGIN/../lib", "/opt/app/bin/prog")
	want := "/opt/app/bin/../lib"
	if got != want {
		t.Errorf("expandToken = %q, want %q", got, want)
	}
}
