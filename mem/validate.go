package mem

import (
	"fmt"

	"github.com/ojas-mohbansi/my-own-os/security"
)

// Violation categories reported to the identity provider when an
// access is denied.
const (
	ViolationInvalidAccess      = "INVALID_ACCESS"
	ViolationAddressOverflow    = "ADDRESS_OVERFLOW"
	ViolationOutOfBounds        = "OUT_OF_BOUNDS"
	ViolationMisaligned         = "MISALIGNED_ACCESS"
	ViolationUnregisteredRegion = "UNREGISTERED_REGION"
	ViolationPermissionDenied   = "PERMISSION_DENIED"
	ViolationWrongOwner         = "WRONG_OWNER"
	ViolationNoUser             = "NO_USER"
	ViolationInvalidSize        = "INVALID_SIZE"
	ViolationOutOfMemory        = "OUT_OF_MEMORY"
	ViolationRegistryFull       = "REGION_REGISTRATION_FAILED"
	ViolationNullFree           = "NULL_POINTER_FREE"
)

// Validate checks whether the current principal may perform a prot
// access on [addr, addr+size). Denials are reported to the identity
// provider as a side effect; the boolean is the whole contract.
func (m *Manager) Validate(addr Addr, size uint32, prot Protection) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	ok, _ := m.checkAccess(addr, size, prot, m.identity.CurrentUser())
	return ok
}

// checkAccess runs the access decision sequence in order; every check
// is a hard reject. Must be called with mu held. The returned category
// is empty on approval.
func (m *Manager) checkAccess(addr Addr, size uint32, prot Protection, user *security.User) (bool, string) {
	if !m.protection {
		return true, ""
	}

	if addr == 0 || size == 0 {
		m.deny(ViolationInvalidAccess, "null address or zero size", addr, user)
		return false, ViolationInvalidAccess
	}

	start := uint32(addr)
	end := start + size

	if end < start {
		m.deny(ViolationAddressOverflow, "address calculation overflow", addr, user)
		return false, ViolationAddressOverflow
	}

	if start < KernelEnd || end > PhysMemoryEnd {
		m.deny(ViolationOutOfBounds, "memory access out of bounds", addr, user)
		return false, ViolationOutOfBounds
	}

	if start%PageSize != 0 {
		m.deny(ViolationMisaligned, "misaligned memory access", addr, user)
		return false, ViolationMisaligned
	}

	region, found := m.regions.LookupCovering(addr, size)
	if !found {
		m.deny(ViolationUnregisteredRegion, "access to unregistered memory region", addr, user)
		return false, ViolationUnregisteredRegion
	}

	if region.Prot&prot != prot {
		m.deny(ViolationPermissionDenied, "insufficient permissions for memory access", addr, user)
		return false, ViolationPermissionDenied
	}

	if region.Owner != nil && region.Owner != user {
		m.deny(ViolationWrongOwner, "memory access by wrong user", addr, user)
		return false, ViolationWrongOwner
	}

	return true, ""
}

func (m *Manager) deny(category, detail string, addr Addr, user *security.User) {
	m.identity.ReportViolation(category, fmt.Sprintf("%s at 0x%X", detail, uint32(addr)), user)
}
