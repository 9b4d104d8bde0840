package sched

import (
	"sync"

	"github.com/ojas-mohbansi/my-own-os/log"
	"github.com/pkg/errors"
)

const (
	MaxThreads = 64
	MaxCPUs    = 8
)

var (
	ErrTableFull = errors.New("thread table is full")
	ErrNilEntry  = errors.New("nil thread entry")
)

// State tracks a thread through its lifecycle. Transitions are driven
// only by the scheduler: Ready -> Running -> {Ready, Done}.
type State int

const (
	Ready State = iota
	Running
	Blocked
	Done
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Blocked:
		return "blocked"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

type ThreadID int

type CPUID int

// EntryFunc is one cooperative slice of a thread. The scheduler
// invokes it synchronously once per dispatch; the function may call
// Yield or CompleteCurrent to transition out of Running, otherwise the
// slice ends in an implicit yield.
type EntryFunc func(arg interface{})

type Thread struct {
	ID       ThreadID
	CPU      CPUID
	Priority int
	Quota    uint32
	State    State

	// Ticks counts slices this thread has consumed.
	Ticks uint64

	entry EntryFunc
	arg   interface{}
}

// Scheduler owns the thread table, the shared FIFO run queue and the
// per-CPU load counters. Dispatch is cooperative: one logical driver
// calls Schedule in a loop. The lock is the hardening for callers that
// drive it from more than one goroutine; the dispatch model itself
// stays single-driver.
type Scheduler struct {
	mu sync.Mutex

	threads     [MaxThreads]Thread
	threadCount int

	// Shared FIFO of ready thread ids, circular. One spare slot keeps
	// head==tail unambiguous with every thread ready at once. Per-CPU
	// load counters track assignment for balancing only; they do not
	// shard dispatch.
	queue      [MaxThreads + 1]ThreadID
	head, tail int

	load [MaxCPUs]int
	cpus int

	current ThreadID
}

func New(cpus int) *Scheduler {
	if cpus < 1 {
		cpus = 1
	}
	if cpus > MaxCPUs {
		cpus = MaxCPUs
	}

	return &Scheduler{
		cpus:    cpus,
		current: -1,
	}
}

// Create registers a new thread in Ready state on the least-loaded
// CPU. It never starts execution.
func (s *Scheduler) Create(entry EntryFunc, arg interface{}, priority int) (ThreadID, error) {
	if entry == nil {
		return -1, ErrNilEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.threadCount >= MaxThreads {
		return -1, ErrTableFull
	}

	best := CPUID(0)
	for i := 1; i < s.cpus; i++ {
		if s.load[i] < s.load[best] {
			best = CPUID(i)
		}
	}

	id := ThreadID(s.threadCount)
	s.threadCount++

	s.threads[id] = Thread{
		ID:       id,
		CPU:      best,
		Priority: priority,
		Quota:    1,
		State:    Ready,
		entry:    entry,
		arg:      arg,
	}

	s.load[best]++
	s.push(id)

	log.L.Trace("thread-create", "id", int(id), "cpu", int(best), "priority", priority)

	return id, nil
}

// push must be called with mu held.
func (s *Scheduler) push(id ThreadID) bool {
	next := (s.tail + 1) % len(s.queue)
	if next == s.head {
		return false
	}

	s.queue[s.tail] = id
	s.tail = next

	return true
}

// pop must be called with mu held.
func (s *Scheduler) pop() (ThreadID, bool) {
	if s.head == s.tail {
		return -1, false
	}

	id := s.queue[s.head]
	s.head = (s.head + 1) % len(s.queue)

	return id, true
}

// Schedule dispatches one slice: it dequeues the next ready thread,
// runs its entry to the end of the slice, and re-enqueues it unless
// the slice transitioned it out of Running. Returns false only when
// no ready thread remains in the run queue.
func (s *Scheduler) Schedule() bool {
	s.mu.Lock()

	var id ThreadID
	for {
		var ok bool
		id, ok = s.pop()
		if !ok {
			s.mu.Unlock()
			return false
		}

		if s.threads[id].State == Ready {
			break
		}
		// Stale entry. Drop it and keep draining the queue.
	}

	t := &s.threads[id]
	t.State = Running
	s.current = id

	entry := t.entry
	arg := t.arg

	// The slice runs outside the lock so it can call Yield or
	// CompleteCurrent.
	s.mu.Unlock()

	entry(arg)

	s.mu.Lock()
	defer s.mu.Unlock()

	t.Ticks++

	if s.current == id {
		// Implicit yield: the slice ended without an explicit
		// transition.
		t.State = Ready
		s.push(id)
		s.current = -1
	}

	return true
}

// Yield marks the current thread ready again and puts it at the tail
// of the run queue. Callable only from within a running slice.
func (s *Scheduler) Yield() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current < 0 {
		return
	}

	id := s.current
	s.threads[id].State = Ready
	s.push(id)
	s.current = -1
}

// CompleteCurrent retires the current thread. Done threads never
// re-enter the system; the CPU's load counter drops permanently.
func (s *Scheduler) CompleteCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current < 0 {
		return
	}

	id := s.current
	t := &s.threads[id]

	t.State = Done
	s.load[t.CPU]--
	s.current = -1

	log.L.Trace("thread-done", "id", int(id), "ticks", t.Ticks)
}

// ThreadCount reports threads that have not reached Done.
func (s *Scheduler) ThreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for i := 0; i < s.threadCount; i++ {
		if s.threads[i].State != Done {
			count++
		}
	}

	return count
}

func (s *Scheduler) CPULoad(cpu CPUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cpu < 0 || int(cpu) >= s.cpus {
		return 0
	}

	return s.load[cpu]
}

func (s *Scheduler) CPUs() int {
	return s.cpus
}

// CurrentThread returns the id of the thread inside its slice, or -1
// between slices.
func (s *Scheduler) CurrentThread() ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Threads returns a snapshot of the thread table for diagnostics.
func (s *Scheduler) Threads() []Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Thread, s.threadCount)
	copy(out, s.threads[:s.threadCount])

	return out
}
