package mem

import (
	"github.com/ojas-mohbansi/my-own-os/security"
)

// Region is one registered allocation: a contiguous range with a
// permission mask and an owning principal. A nil Owner means the range
// belongs to the kernel and passes ownership checks for everybody.
type Region struct {
	Base  Addr
	Size  uint32
	Prot  Protection
	Owner *security.User

	Allocated bool
}

// Covers reports whether [addr, addr+size) lies fully inside the
// region. Callers have already ruled out wraparound in addr+size.
func (r *Region) Covers(addr Addr, size uint32) bool {
	if uint32(addr) < uint32(r.Base) {
		return false
	}

	return uint32(addr)+size <= uint32(r.Base)+r.Size
}

// RegionTable is the fixed-capacity registry of live regions. Regions
// are non-overlapping by construction: each corresponds to a single
// allocation.
type RegionTable struct {
	regions [MaxRegions]Region
	count   int
}

func (t *RegionTable) Count() int {
	return t.count
}

func (t *RegionTable) Full() bool {
	return t.count >= MaxRegions
}

// Register inserts a record. It fails without mutation when the table
// is full.
func (t *RegionTable) Register(base Addr, size uint32, prot Protection, owner *security.User) bool {
	if t.count >= MaxRegions {
		return false
	}

	t.regions[t.count] = Region{
		Base:      base,
		Size:      size,
		Prot:      prot,
		Owner:     owner,
		Allocated: true,
	}

	t.count++

	return true
}

// Unregister removes the record whose base matches addr exactly,
// compacting the table. Order among the remaining entries changes.
func (t *RegionTable) Unregister(addr Addr) bool {
	for i := 0; i < t.count; i++ {
		if t.regions[i].Base != addr {
			continue
		}

		t.count--
		t.regions[i] = t.regions[t.count]
		t.regions[t.count] = Region{}

		return true
	}

	return false
}

// LookupCovering returns the unique region fully containing
// [addr, addr+size). At most one exists since regions never overlap.
func (t *RegionTable) LookupCovering(addr Addr, size uint32) (*Region, bool) {
	for i := 0; i < t.count; i++ {
		if t.regions[i].Covers(addr, size) {
			return &t.regions[i], true
		}
	}

	return nil, false
}
