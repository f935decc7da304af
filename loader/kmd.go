// Package loader writes parsed .kmd program images into simulator memory.
package loader

import (
	"fmt"

	"github.com/iguana-debugger/libiguana/kmd"
)

// MemoryWriter stores bytes at a simulator memory address.
type MemoryWriter interface {
	WriteMemory(addr uint32, data []byte) error
}

// Image summarizes what a Load wrote.
type Image struct {
	// Words is the number of lines written to memory.
	Words int
	// Bytes is the total number of bytes written.
	Bytes int
	// Labels holds the symbol table entries seen, in image order.
	Labels []kmd.Label
	// Base is the lowest address written, or 0 for an empty image.
	Base uint32
}

// Load writes every line that carries both an address and a word. Tags,
// labels and incomplete lines are skipped. The first failing write aborts the
// load; words already written stay in memory.
func Load(w MemoryWriter, tokens []kmd.Token) (*Image, error) {
	img := &Image{}

	for _, tok := range tokens {
		switch t := tok.(type) {
		case kmd.Label:
			img.Labels = append(img.Labels, t)
		case kmd.Line:
			if !t.HasAddress || t.Word == nil {
				continue
			}

			data := t.Word.Bytes()
			if err := w.WriteMemory(t.Address, data); err != nil {
				return img, fmt.Errorf("failed to load word at 0x%08x: %w", t.Address, err)
			}

			if img.Words == 0 || t.Address < img.Base {
				img.Base = t.Address
			}
			img.Words++
			img.Bytes += len(data)
		}
	}

	return img, nil
}
