package mem

import (
	"testing"

	"github.com/ojas-mohbansi/my-own-os/security"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func errorsCause(err error) error {
	return errors.Cause(err)
}

type fakeIdentity struct {
	user       *security.User
	categories []string
}

func (f *fakeIdentity) CurrentUser() *security.User {
	return f.user
}

func (f *fakeIdentity) ReportViolation(category, detail string, user *security.User) {
	f.categories = append(f.categories, category)
}

func (f *fakeIdentity) LogEvent(category, detail string, user *security.User) {}

func (f *fakeIdentity) last() string {
	if len(f.categories) == 0 {
		return ""
	}

	return f.categories[len(f.categories)-1]
}

func testUser(name string) *security.User {
	return &security.User{
		Name:      name,
		Privilege: security.PrivilegeUser,
		Active:    true,
	}
}

func TestBitmap(t *testing.T) {
	n := neko.Modern(t)

	n.It("allocates every frame exactly once before running out", func(t *testing.T) {
		b := NewBitmap()

		reserved := uint32(KernelFrames)
		for f := Frame(0); f < Frame(reserved); f++ {
			b.Reserve(f)
		}

		seen := make(map[Frame]bool)

		for i := uint32(0); i < TotalFrames-reserved; i++ {
			f, err := b.AllocFrame()
			require.NoError(t, err)
			require.False(t, seen[f], "frame %d allocated twice", f)
			seen[f] = true
		}

		_, err := b.AllocFrame()
		require.Equal(t, ErrOutOfMemory, err)
	})

	n.It("reuses a freed frame on the next allocation", func(t *testing.T) {
		b := NewBitmap()

		f1, err := b.AllocFrame()
		require.NoError(t, err)

		b.FreeFrame(f1)

		f2, err := b.AllocFrame()
		require.NoError(t, err)

		require.Equal(t, f1, f2)
	})

	n.It("rewinds the hint when a lower frame is freed", func(t *testing.T) {
		b := NewBitmap()

		low, err := b.AllocFrame()
		require.NoError(t, err)

		_, err = b.AllocFrame()
		require.NoError(t, err)

		b.FreeFrame(low)

		next, err := b.AllocFrame()
		require.NoError(t, err)

		require.Equal(t, low, next)
	})

	n.It("wraps the scan around the full range", func(t *testing.T) {
		b := NewBitmap()

		for f := Frame(1); f < TotalFrames; f++ {
			b.Reserve(f)
		}

		// Hint sits past the only free frame; one wraparound finds it.
		b.hint = TotalFrames / 2

		f, err := b.AllocFrame()
		require.NoError(t, err)
		require.Equal(t, Frame(0), f)
	})

	n.It("never double-allocates across interleaved alloc and free", func(t *testing.T) {
		b := NewBitmap()

		live := make(map[Frame]bool)

		var frames []Frame
		for i := 0; i < 64; i++ {
			f, err := b.AllocFrame()
			require.NoError(t, err)
			require.False(t, live[f])
			live[f] = true
			frames = append(frames, f)
		}

		for i := 0; i < 64; i += 2 {
			b.FreeFrame(frames[i])
			delete(live, frames[i])
		}

		for i := 0; i < 48; i++ {
			f, err := b.AllocFrame()
			require.NoError(t, err)
			require.False(t, live[f])
			live[f] = true
		}
	})

	n.Meow()
}

func TestRegionTable(t *testing.T) {
	n := neko.Modern(t)

	owner := testUser("alice")

	n.It("registers and looks up a covering region", func(t *testing.T) {
		var rt RegionTable

		require.True(t, rt.Register(0x200000, PageSize, ProtRead|ProtWrite, owner))

		region, found := rt.LookupCovering(0x200000, PageSize)
		require.True(t, found)
		require.Equal(t, Addr(0x200000), region.Base)
		require.Equal(t, owner, region.Owner)

		_, found = rt.LookupCovering(0x300000, PageSize)
		require.False(t, found)
	})

	n.It("rejects registration once the table is full", func(t *testing.T) {
		var rt RegionTable

		for i := 0; i < MaxRegions; i++ {
			require.True(t, rt.Register(Addr(0x200000+i*PageSize), PageSize, ProtRead, nil))
		}

		require.False(t, rt.Register(0x900000, PageSize, ProtRead, nil))
		require.Equal(t, MaxRegions, rt.Count())
	})

	n.It("unregisters by exact base address only", func(t *testing.T) {
		var rt RegionTable

		rt.Register(0x200000, PageSize, ProtRead, nil)

		require.False(t, rt.Unregister(0x200100))
		require.True(t, rt.Unregister(0x200000))
		require.False(t, rt.Unregister(0x200000))
		require.Equal(t, 0, rt.Count())
	})

	n.Meow()
}

func TestValidate(t *testing.T) {
	n := neko.Modern(t)

	n.It("is deterministic and reports stable categories", func(t *testing.T) {
		id := &fakeIdentity{user: testUser("alice")}
		m := NewManager(id)

		addr, err := m.Allocate(PageSize)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			require.True(t, m.Validate(addr, PageSize, ProtWrite))
		}

		cases := []struct {
			addr     Addr
			size     uint32
			prot     Protection
			category string
		}{
			{0, PageSize, ProtRead, ViolationInvalidAccess},
			{addr, 0, ProtRead, ViolationInvalidAccess},
			{0xFFFFF000, 0x2000, ProtRead, ViolationAddressOverflow},
			{0x1000, PageSize, ProtRead, ViolationOutOfBounds},
			{PhysMemoryEnd - PageSize + 4, PageSize, ProtRead, ViolationOutOfBounds},
			{addr + 4, PageSize - 4, ProtRead, ViolationMisaligned},
			{0x800000, PageSize, ProtRead, ViolationUnregisteredRegion},
			{addr, PageSize, ProtExec, ViolationPermissionDenied},
		}

		for _, c := range cases {
			for i := 0; i < 2; i++ {
				require.False(t, m.Validate(c.addr, c.size, c.prot))
				require.Equal(t, c.category, id.last(), "addr=0x%X size=%d", c.addr, c.size)
			}
		}
	})

	n.It("denies access to another user's region with WRONG_OWNER", func(t *testing.T) {
		id := &fakeIdentity{user: testUser("alice")}
		m := NewManager(id)

		addr, err := m.Allocate(PageSize)
		require.NoError(t, err)

		id.user = testUser("bob")

		require.False(t, m.Validate(addr, PageSize, ProtWrite))
		require.Equal(t, ViolationWrongOwner, id.last())
	})

	n.Meow()
}

func TestManager(t *testing.T) {
	n := neko.Modern(t)

	n.It("refuses anonymous allocation", func(t *testing.T) {
		id := &fakeIdentity{}
		m := NewManager(id)

		_, err := m.Allocate(PageSize)
		require.Equal(t, ErrNoUser, err)
		require.Equal(t, ViolationNoUser, id.last())
	})

	n.It("only hands out whole pages", func(t *testing.T) {
		id := &fakeIdentity{user: testUser("alice")}
		m := NewManager(id)

		_, err := m.Allocate(100)
		require.Equal(t, ErrInvalidSize, errorsCause(err))
	})

	n.It("allocates, frees and reuses the same page", func(t *testing.T) {
		id := &fakeIdentity{user: testUser("alice")}
		m := NewManager(id)

		addr, err := m.Allocate(PageSize)
		require.NoError(t, err)
		require.True(t, m.FrameAllocated(addr))

		require.NoError(t, m.Free(addr))
		require.False(t, m.FrameAllocated(addr))

		again, err := m.Allocate(PageSize)
		require.NoError(t, err)
		require.Equal(t, addr, again)
	})

	n.It("keeps another user from freeing an owned page", func(t *testing.T) {
		id := &fakeIdentity{user: testUser("alice")}
		m := NewManager(id)

		addr, err := m.Allocate(PageSize)
		require.NoError(t, err)

		id.user = testUser("bob")

		err = m.Free(addr)
		require.Equal(t, ErrPermissionDenied, err)
		require.Equal(t, ViolationWrongOwner, id.last())
		require.True(t, m.FrameAllocated(addr))
	})

	n.It("maps free failures to named errors", func(t *testing.T) {
		id := &fakeIdentity{user: testUser("alice")}
		m := NewManager(id)

		require.Equal(t, ErrNotFound, m.Free(0x800000))
		require.Equal(t, ErrInvalidAddress, m.Free(0x1000))
		require.Equal(t, ErrInvalidAddress, errorsCause(m.Free(0)))
	})

	n.It("rolls back the frame when the registry is full", func(t *testing.T) {
		id := &fakeIdentity{user: testUser("alice")}
		m := NewManager(id)

		// One slot holds the kernel region; fill the rest.
		for i := 0; i < MaxRegions-1; i++ {
			_, err := m.Allocate(PageSize)
			require.NoError(t, err)
		}

		before := m.Stats().FreeFrames

		_, err := m.Allocate(PageSize)
		require.Equal(t, ErrRegistryFull, err)
		require.Equal(t, ViolationRegistryFull, id.last())

		require.Equal(t, before, m.Stats().FreeFrames)
		require.Equal(t, MaxRegions, m.RegionCount())
	})

	n.Meow()
}
