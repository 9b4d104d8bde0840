package sched

import (
	"github.com/ojas-mohbansi/my-own-os/log"
)

// LoadBalance migrates at most one ready thread from the most loaded
// CPU to the least loaded one, and only when the gap exceeds 1.
// Callers invoke it periodically; repeated calls converge the gap to
// at most one. Reports whether a migration happened.
func (s *Scheduler) LoadBalance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	minCPU, maxCPU := 0, 0
	for i := 1; i < s.cpus; i++ {
		if s.load[i] < s.load[minCPU] {
			minCPU = i
		}
		if s.load[i] > s.load[maxCPU] {
			maxCPU = i
		}
	}

	if s.load[maxCPU]-s.load[minCPU] <= 1 {
		return false
	}

	for i := 0; i < s.threadCount; i++ {
		t := &s.threads[i]

		if t.State != Ready || t.CPU != CPUID(maxCPU) {
			continue
		}

		t.CPU = CPUID(minCPU)
		s.load[maxCPU]--
		s.load[minCPU]++

		log.L.Trace("load-balance", "thread", int(t.ID), "from", maxCPU, "to", minCPU)

		return true
	}

	return false
}
