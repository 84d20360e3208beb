// Package gelpp is the library's top-level entry point: the format-sniffing
// openFile dispatcher from spec.md §4.F, plus the glue that lets the image
// builder (package image) open dependency libraries without importing any
// concrete format package itself.
package gelpp

import (
	"os"

	"github.com/statinf-otawa/gelpp/coffi"
	"github.com/statinf-otawa/gelpp/elf"
	"github.com/statinf-otawa/gelpp/format"
	"github.com/statinf-otawa/gelpp/gelerr"
	"github.com/statinf-otawa/gelpp/image"
	"github.com/statinf-otawa/gelpp/pecoff"
)

// OpenFile reads path and sniffs its format, matching in the order spec.md
// §4.F mandates: ELF, then COFFI-TI, then PE-COFF. Each candidate magic is
// checked in turn rather than branching on a single byte, since COFFI's
// 0xc1/0xc2 lead byte and ELF's 0x7f don't collide but the check order is
// itself part of the spec's "magic conflicts are decided by order" rule.
func OpenFile(path string) (format.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, gelerr.Wrap(err, gelerr.KindIO, "gelpp: cannot read %s", path)
	}
	return Open(data, path)
}

// Open sniffs an in-memory image the same way OpenFile does.
func Open(data []byte, path string) (format.File, error) {
	switch {
	case elf.Match(data):
		return elf.Open(data, path)
	case coffi.Match(data):
		return coffi.Open(data, path)
	case pecoff.Match(data):
		return pecoff.Open(data, path)
	default:
		return nil, gelerr.New(gelerr.KindFormat, "gelpp: unknown executable format with magic: %s", magicHex(data))
	}
}

func magicHex(data []byte) string {
	n := len(data)
	if n > 4 {
		n = 4
	}
	const hex = "0123456789abcdef"
	out := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ' ')
		}
		b := data[i]
		out = append(out, hex[b>>4], hex[b&0xf])
	}
	return string(out)
}

// Opener adapts OpenFile to the image.Opener contract the Unix image
// builder uses to resolve DT_NEEDED entries onto disk (spec.md §4.D.2).
func Opener(path string) (format.File, error) { return OpenFile(path) }

var _ image.Opener = Opener
