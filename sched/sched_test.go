package sched

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

// worker builds an entry that consumes exactly slices slices before
// completing.
func worker(s *Scheduler, slices int, ran *int) EntryFunc {
	remaining := slices

	return func(arg interface{}) {
		*ran++
		remaining--
		if remaining <= 0 {
			s.CompleteCurrent()
		}
	}
}

func TestCreate(t *testing.T) {
	n := neko.Modern(t)

	n.It("rejects a nil entry", func(t *testing.T) {
		s := New(4)

		_, err := s.Create(nil, nil, 0)
		require.Equal(t, ErrNilEntry, err)
	})

	n.It("fails once the thread table is full", func(t *testing.T) {
		s := New(4)

		for i := 0; i < MaxThreads; i++ {
			_, err := s.Create(func(arg interface{}) {}, nil, 0)
			require.NoError(t, err)
		}

		_, err := s.Create(func(arg interface{}) {}, nil, 0)
		require.Equal(t, ErrTableFull, err)
	})

	n.It("assigns new threads to the least-loaded CPU, lowest index first", func(t *testing.T) {
		s := New(4)

		var ids []ThreadID
		for i := 0; i < 8; i++ {
			id, err := s.Create(func(arg interface{}) {}, nil, 0)
			require.NoError(t, err)
			ids = append(ids, id)
		}

		threads := s.Threads()
		for i, id := range ids {
			require.Equal(t, CPUID(i%4), threads[id].CPU)
		}

		for cpu := 0; cpu < 4; cpu++ {
			require.Equal(t, 2, s.CPULoad(CPUID(cpu)))
		}
	})

	n.It("passes the creation argument to every slice", func(t *testing.T) {
		s := New(1)

		var got interface{}

		_, err := s.Create(func(arg interface{}) {
			got = arg
			s.CompleteCurrent()
		}, "payload", 0)
		require.NoError(t, err)

		require.True(t, s.Schedule())
		require.Equal(t, "payload", got)
	})

	n.Meow()
}

func TestSchedule(t *testing.T) {
	n := neko.Modern(t)

	n.It("returns false on an empty run queue", func(t *testing.T) {
		s := New(2)

		require.False(t, s.Schedule())
	})

	n.It("dispatches in FIFO order regardless of priority", func(t *testing.T) {
		s := New(2)

		var order []int

		for i := 0; i < 4; i++ {
			i := i

			_, err := s.Create(func(arg interface{}) {
				order = append(order, i)
				s.CompleteCurrent()
			}, nil, 10-i)
			require.NoError(t, err)
		}

		for s.ThreadCount() > 0 {
			require.True(t, s.Schedule())
		}

		require.Equal(t, []int{0, 1, 2, 3}, order)
	})

	n.It("treats a slice without an explicit transition as a yield", func(t *testing.T) {
		s := New(1)

		runs := 0
		_, err := s.Create(func(arg interface{}) {
			runs++
		}, nil, 0)
		require.NoError(t, err)

		require.True(t, s.Schedule())
		require.True(t, s.Schedule())
		require.Equal(t, 2, runs)

		threads := s.Threads()
		require.Equal(t, Ready, threads[0].State)
		require.Equal(t, uint64(2), threads[0].Ticks)
	})

	n.It("re-enqueues an explicit yield at the tail", func(t *testing.T) {
		s := New(1)

		var order []string

		_, err := s.Create(func(arg interface{}) {
			order = append(order, "a")
			s.Yield()
		}, nil, 0)
		require.NoError(t, err)

		_, err = s.Create(func(arg interface{}) {
			order = append(order, "b")
			s.CompleteCurrent()
		}, nil, 0)
		require.NoError(t, err)

		require.True(t, s.Schedule())
		require.True(t, s.Schedule())
		require.True(t, s.Schedule())

		require.Equal(t, []string{"a", "b", "a"}, order)
	})

	n.It("drops a completed thread permanently", func(t *testing.T) {
		s := New(2)

		ran := 0
		id, err := s.Create(worker(s, 1, &ran), nil, 0)
		require.NoError(t, err)

		cpu := s.Threads()[id].CPU
		require.Equal(t, 1, s.CPULoad(cpu))

		require.True(t, s.Schedule())
		require.Equal(t, 1, ran)
		require.Equal(t, 0, s.ThreadCount())
		require.Equal(t, 0, s.CPULoad(cpu))

		require.False(t, s.Schedule())
		require.Equal(t, 1, ran)
	})

	n.It("skips stale queue entries and dispatches the next ready thread", func(t *testing.T) {
		s := New(2)

		ran := 0
		for i := 0; i < 3; i++ {
			_, err := s.Create(func(arg interface{}) {
				ran++
				s.CompleteCurrent()
			}, nil, 0)
			require.NoError(t, err)
		}

		s.mu.Lock()
		s.threads[0].State = Blocked
		s.threads[1].State = Blocked
		s.mu.Unlock()

		require.True(t, s.Schedule())
		require.Equal(t, 1, ran)
		require.Equal(t, Done, s.Threads()[2].State)

		require.False(t, s.Schedule())
		require.Equal(t, 1, ran)
	})

	n.It("runs equal workloads for exactly equal slices", func(t *testing.T) {
		s := New(4)

		const threads = 12
		const slices = 100

		counts := make([]int, threads)

		for i := 0; i < threads; i++ {
			_, err := s.Create(worker(s, slices, &counts[i]), nil, 0)
			require.NoError(t, err)
		}

		total := 0
		for s.ThreadCount() > 0 {
			require.True(t, s.Schedule())
			total++
		}

		require.Equal(t, threads*slices, total)

		for i, c := range counts {
			require.Equal(t, slices, c, "thread %d", i)
		}

		for _, th := range s.Threads() {
			require.Equal(t, Done, th.State)
			require.Equal(t, uint64(slices), th.Ticks)
		}
	})

	n.Meow()
}

func TestLoadBalance(t *testing.T) {
	n := neko.Modern(t)

	// skew forces every thread onto CPU 0, the worst starting point
	// for the balancer.
	skew := func(s *Scheduler) {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i := range s.load {
			s.load[i] = 0
		}

		for i := 0; i < s.threadCount; i++ {
			s.threads[i].CPU = 0
		}
		s.load[0] = s.threadCount
	}

	gap := func(s *Scheduler) int {
		min, max := s.CPULoad(0), s.CPULoad(0)
		for cpu := 1; cpu < s.CPUs(); cpu++ {
			l := s.CPULoad(CPUID(cpu))
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
		}

		return max - min
	}

	n.It("does nothing when the load gap is at most one", func(t *testing.T) {
		s := New(4)

		for i := 0; i < 4; i++ {
			_, err := s.Create(func(arg interface{}) {}, nil, 0)
			require.NoError(t, err)
		}

		require.False(t, s.LoadBalance())
	})

	n.It("migrates exactly one ready thread per call", func(t *testing.T) {
		s := New(4)

		for i := 0; i < 8; i++ {
			_, err := s.Create(func(arg interface{}) {}, nil, 0)
			require.NoError(t, err)
		}

		skew(s)
		require.Equal(t, 8, s.CPULoad(0))

		require.True(t, s.LoadBalance())
		require.Equal(t, 7, s.CPULoad(0))
		require.Equal(t, 7, gap(s))
	})

	n.It("converges monotonically to a gap of at most one", func(t *testing.T) {
		s := New(4)

		const threads = 16

		for i := 0; i < threads; i++ {
			_, err := s.Create(func(arg interface{}) {}, nil, 0)
			require.NoError(t, err)
		}

		skew(s)

		prev := gap(s)
		for i := 0; i < threads; i++ {
			s.LoadBalance()

			cur := gap(s)
			require.LessOrEqual(t, cur, prev)
			prev = cur
		}

		require.LessOrEqual(t, gap(s), 1)
		require.False(t, s.LoadBalance())
	})

	n.It("balances 16 threads across 4 CPUs before any scheduling", func(t *testing.T) {
		s := New(4)

		counts := make([]int, 16)
		for i := 0; i < 16; i++ {
			_, err := s.Create(worker(s, 10, &counts[i]), nil, 0)
			require.NoError(t, err)
		}

		for i := 0; i < 64; i++ {
			s.LoadBalance()
		}

		require.LessOrEqual(t, gap(s), 1)

		for s.ThreadCount() > 0 {
			require.True(t, s.Schedule())
		}

		for i, c := range counts {
			require.Equal(t, 10, c, "thread %d", i)
		}
	})

	n.Meow()
}
