package kernel

import (
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/ojas-mohbansi/my-own-os/console"
	"github.com/ojas-mohbansi/my-own-os/fs"
	"github.com/ojas-mohbansi/my-own-os/log"
	"github.com/ojas-mohbansi/my-own-os/mem"
	"github.com/ojas-mohbansi/my-own-os/sched"
	"github.com/ojas-mohbansi/my-own-os/security"
)

const (
	DefaultCPUs      = 4
	DefaultArenaSize = 64 * 1024
)

type Config struct {
	// CPUs is the number of logical CPUs the scheduler balances
	// across.
	CPUs int

	// ArenaSize is the byte size of the file system's data area.
	ArenaSize int

	// SkipDefaultUsers leaves the user table empty instead of
	// provisioning the stock admin and guest accounts.
	SkipDefaultUsers bool
}

// Kernel wires the subsystems together: identity first, then memory
// gated by it, then the scheduler and the file system.
type Kernel struct {
	Security *security.Manager
	Mem      *mem.Manager
	Sched    *sched.Scheduler
	FS       *fs.FileSystem
	Console  *console.Console

	// OnPanic intercepts Panic for embedders and tests. The default
	// exits the process.
	OnPanic func(msg string)
}

func New(cfg Config) (*Kernel, error) {
	if cfg.CPUs == 0 {
		cfg.CPUs = DefaultCPUs
	}
	if cfg.ArenaSize == 0 {
		cfg.ArenaSize = DefaultArenaSize
	}

	k := &Kernel{}

	bootPhase("security")
	k.Security = security.NewManager()

	if !cfg.SkipDefaultUsers {
		if _, err := k.Security.CreateUser("admin", "admin123", security.PrivilegeAdmin); err != nil {
			return nil, err
		}
		if _, err := k.Security.CreateUser("guest", "guest", security.PrivilegeGuest); err != nil {
			return nil, err
		}
	}

	bootPhase("memory")
	k.Mem = mem.NewManager(k.Security)

	bootPhase("scheduler")
	k.Sched = sched.New(cfg.CPUs)

	bootPhase("filesystem")
	var err error
	k.FS, err = fs.New(make([]byte, cfg.ArenaSize))
	if err != nil {
		return nil, err
	}

	bootPhase("console")
	k.Console = console.New()

	log.L.Info("boot-complete", "cpus", cfg.CPUs, "fs-blocks", k.FS.TotalBlocks())

	return k, nil
}

func bootPhase(name string) {
	log.L.Info("boot-phase", "name", name)
}

// Panic is the only fatal path in the system. The core subsystems
// never call it; bad input always comes back as an error value.
func (k *Kernel) Panic(msg string) {
	log.L.Error("kernel-panic", "msg", msg)

	if log.L.IsTrace() {
		log.L.Trace("kernel-state", "dump", spew.Sdump(k.Stats()))
	}

	if k.OnPanic != nil {
		k.OnPanic(msg)
		return
	}

	os.Exit(1)
}

type Stats struct {
	Mem        mem.Stats
	Threads    int
	FSEntries  int
	Users      int
	Violations uint32
}

func (k *Kernel) Stats() Stats {
	return Stats{
		Mem:        k.Mem.Stats(),
		Threads:    k.Sched.ThreadCount(),
		FSEntries:  k.FS.EntryCount(),
		Users:      len(k.Security.Users()),
		Violations: k.Security.Violations(),
	}
}
