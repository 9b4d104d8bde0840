package mem

import (
	"github.com/ojas-mohbansi/my-own-os/security"
)

const (
	// PageSize is the allocation granularity. Every frame tracked by
	// the bitmap is exactly one page.
	PageSize = 4096

	// KernelEnd marks the top of the kernel image. Frames below it are
	// reserved at boot and never handed to users.
	KernelEnd = 0x100000

	// PhysMemoryEnd bounds the tracked physical range.
	PhysMemoryEnd = 0x1000000

	TotalFrames = PhysMemoryEnd / PageSize

	KernelFrames = (KernelEnd + PageSize - 1) / PageSize

	MaxRegions = 1024
)

// Addr is a physical address inside the tracked range. The address
// space is 32-bit; overflow checks rely on uint32 wraparound.
type Addr uint32

// Frame indexes one page-sized unit of physical memory.
type Frame uint32

func (f Frame) Address() Addr {
	return Addr(uint32(f) * PageSize)
}

func FrameOf(addr Addr) Frame {
	return Frame(uint32(addr) / PageSize)
}

// Protection is a permission bitmask attached to a registered region.
type Protection uint8

const (
	ProtNone  Protection = 0
	ProtRead  Protection = 1 << 0
	ProtWrite Protection = 1 << 1
	ProtExec  Protection = 1 << 2
)

func (p Protection) String() string {
	buf := []byte("---")

	if p&ProtRead != 0 {
		buf[0] = 'r'
	}
	if p&ProtWrite != 0 {
		buf[1] = 'w'
	}
	if p&ProtExec != 0 {
		buf[2] = 'x'
	}

	return string(buf)
}

// Identity supplies the current principal and receives audit events.
// Satisfied by *security.Manager.
type Identity interface {
	CurrentUser() *security.User
	ReportViolation(category, detail string, user *security.User)
	LogEvent(category, detail string, user *security.User)
}
