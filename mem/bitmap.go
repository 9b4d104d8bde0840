package mem

import (
	"github.com/pkg/errors"
)

var ErrOutOfMemory = errors.New("no free page frames available")

// Bitmap tracks allocation state for every physical frame, one bit per
// frame. The hint remembers where the last scan left off so repeated
// allocations do not rescan the reserved low frames.
type Bitmap struct {
	bits [TotalFrames / 8]uint8

	hint      uint32
	freeCount uint32
}

func NewBitmap() *Bitmap {
	return &Bitmap{
		freeCount: TotalFrames,
	}
}

func (b *Bitmap) set(f Frame) {
	b.bits[f>>3] |= 1 << (f & 7)
}

func (b *Bitmap) clear(f Frame) {
	b.bits[f>>3] &^= 1 << (f & 7)
}

func (b *Bitmap) test(f Frame) bool {
	return b.bits[f>>3]&(1<<(f&7)) != 0
}

// Allocated reports whether f is currently marked used.
func (b *Bitmap) Allocated(f Frame) bool {
	return b.test(f)
}

func (b *Bitmap) FreeFrames() uint32 {
	return b.freeCount
}

// Reserve marks f used without going through allocation. Used at boot
// to pin the kernel image frames.
func (b *Bitmap) Reserve(f Frame) {
	if b.test(f) {
		return
	}

	b.set(f)
	b.freeCount--

	if b.hint == uint32(f) {
		b.hint = uint32(f) + 1
	}
}

// AllocFrame returns the first free frame at or after the hint,
// wrapping around the full range exactly once. The frame is marked
// used before it is returned; on failure no state changes.
func (b *Bitmap) AllocFrame() (Frame, error) {
	for i := uint32(0); i < TotalFrames; i++ {
		f := Frame((b.hint + i) % TotalFrames)

		if b.test(f) {
			continue
		}

		b.set(f)
		b.freeCount--
		b.hint = uint32(f) + 1

		return f, nil
	}

	return 0, ErrOutOfMemory
}

// FreeFrame clears f. Freed frames below the hint rewind it, biasing
// the next scan toward reuse of low frames.
func (b *Bitmap) FreeFrame(f Frame) {
	if !b.test(f) {
		return
	}

	b.clear(f)
	b.freeCount++

	if uint32(f) < b.hint {
		b.hint = uint32(f)
	}
}
