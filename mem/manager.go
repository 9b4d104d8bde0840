package mem

import (
	"sync"

	"github.com/ojas-mohbansi/my-own-os/log"
	"github.com/pkg/errors"
)

var (
	ErrNoUser           = errors.New("no authenticated user")
	ErrInvalidSize      = errors.New("invalid allocation size")
	ErrRegistryFull     = errors.New("region registry is full")
	ErrNotFound         = errors.New("no registered region at address")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidAddress   = errors.New("invalid address")
)

// Manager composes the frame bitmap, the region registry and the
// access validator behind a single lock. All allocation policy lives
// here: page granularity only, no anonymous allocation, registration
// and allocation succeed or fail as one transaction.
type Manager struct {
	mu sync.Mutex

	identity Identity

	bitmap  Bitmap
	regions RegionTable

	// protection stays off while the boot path sets up the kernel
	// region, then never goes off again.
	protection bool
}

func NewManager(identity Identity) *Manager {
	m := &Manager{
		identity: identity,
	}

	m.bitmap = *NewBitmap()

	for f := Frame(0); f < KernelFrames; f++ {
		m.bitmap.Reserve(f)
	}

	m.regions.Register(0, KernelEnd, ProtRead|ProtWrite|ProtExec, nil)

	m.protection = true

	log.L.Debug("memory-init", "frames", TotalFrames, "kernel-frames", KernelFrames)

	return m
}

// Allocate hands out one page owned by the current principal. Only
// size == PageSize is supported.
func (m *Manager) Allocate(size uint32) (Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.identity.CurrentUser()
	if user == nil {
		m.deny(ViolationNoUser, "memory allocation attempted without authenticated user", 0, nil)
		return 0, ErrNoUser
	}

	if size != PageSize {
		m.deny(ViolationInvalidSize, "invalid memory allocation size", 0, user)
		return 0, errors.Wrapf(ErrInvalidSize, "size: %d", size)
	}

	frame, err := m.bitmap.AllocFrame()
	if err != nil {
		m.deny(ViolationOutOfMemory, "no free pages available", 0, user)
		return 0, err
	}

	addr := frame.Address()

	if !m.regions.Register(addr, PageSize, ProtRead|ProtWrite, user) {
		// Roll the frame back so the failure leaves no state behind.
		m.bitmap.FreeFrame(frame)
		m.deny(ViolationRegistryFull, "failed to register memory region", addr, user)
		return 0, ErrRegistryFull
	}

	m.identity.LogEvent("MEMORY_ALLOCATED", "memory page allocated successfully", user)
	log.L.Trace("mem-allocate", "addr", uint32(addr), "user", user.Name)

	return addr, nil
}

// Free releases a page previously returned by Allocate. The caller
// must hold write access to the page under the current principal.
func (m *Manager) Free(addr Addr) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.identity.CurrentUser()

	if addr == 0 {
		m.deny(ViolationNullFree, "attempted to free null pointer", 0, user)
		return errors.Wrap(ErrInvalidAddress, "null pointer")
	}

	ok, category := m.checkAccess(addr, PageSize, ProtWrite, user)
	if !ok {
		return freeError(category)
	}

	if user == nil {
		m.deny(ViolationNoUser, "memory free attempted without authenticated user", addr, nil)
		return ErrPermissionDenied
	}

	m.bitmap.FreeFrame(FrameOf(addr))
	m.regions.Unregister(addr)

	m.identity.LogEvent("MEMORY_FREED", "memory page freed successfully", user)
	log.L.Trace("mem-free", "addr", uint32(addr), "user", user.Name)

	return nil
}

func freeError(category string) error {
	switch category {
	case ViolationUnregisteredRegion:
		return ErrNotFound
	case ViolationInvalidAccess, ViolationAddressOverflow, ViolationOutOfBounds, ViolationMisaligned:
		return ErrInvalidAddress
	default:
		return ErrPermissionDenied
	}
}

type Stats struct {
	TotalFrames  uint32
	FreeFrames   uint32
	KernelFrames uint32
	Regions      int
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Stats{
		TotalFrames:  TotalFrames,
		FreeFrames:   m.bitmap.FreeFrames(),
		KernelFrames: KernelFrames,
		Regions:      m.regions.Count(),
	}
}

// FrameAllocated reports whether the frame containing addr is marked
// used. Exposed for diagnostics.
func (m *Manager) FrameAllocated(addr Addr) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.bitmap.Allocated(FrameOf(addr))
}

// RegionCount reports live registrations, the boot-time kernel region
// included.
func (m *Manager) RegionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.regions.Count()
}
