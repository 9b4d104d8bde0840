package security

import (
	"github.com/ojas-mohbansi/my-own-os/log"
	"github.com/ojas-mohbansi/my-own-os/pkg/waiter"
)

const AuditLogSize = 64

const (
	_ waiter.EventType = iota
	ViolationReported
)

type AuditEntry struct {
	Category  string
	Detail    string
	User      *User
	Timestamp uint32
}

// auditLog is a fixed-size ring. Old entries are overwritten once the
// ring fills; the counters keep growing so totals survive wraparound.
type auditLog struct {
	entries [AuditLogSize]AuditEntry
	index   int
	count   int

	eventsLogged     uint32
	violationsLogged uint32

	observers waiter.Waiter
}

// logEvent must be called with m.mu held.
func (m *Manager) logEvent(category, detail string, user *User) {
	a := &m.audit

	a.entries[a.index] = AuditEntry{
		Category:  category,
		Detail:    detail,
		User:      user,
		Timestamp: a.eventsLogged,
	}

	a.index = (a.index + 1) % AuditLogSize
	if a.count < AuditLogSize {
		a.count++
	}

	a.eventsLogged++
}

// LogEvent records a plain audit event without touching the violation
// counter.
func (m *Manager) LogEvent(category, detail string, user *User) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logEvent(category, detail, user)
}

// ReportViolation records a denied operation for audit. It never
// changes the outcome of the operation that triggered it.
func (m *Manager) ReportViolation(category, detail string, user *User) {
	m.mu.Lock()

	m.logEvent(category, detail, user)
	m.audit.violationsLogged++

	m.mu.Unlock()

	name := "<none>"
	if user != nil {
		name = user.Name
	}
	log.L.Debug("security-violation", "category", category, "detail", detail, "user", name)

	m.audit.observers.Notify(ViolationReported)
}

func (m *Manager) Violations() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.audit.violationsLogged
}

func (m *Manager) EventsLogged() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.audit.eventsLogged
}

// AuditTrail returns the retained entries, oldest first.
func (m *Manager) AuditTrail() []AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := &m.audit

	out := make([]AuditEntry, 0, a.count)

	start := a.index - a.count
	if start < 0 {
		start += AuditLogSize
	}

	for i := 0; i < a.count; i++ {
		out = append(out, a.entries[(start+i)%AuditLogSize])
	}

	return out
}

// WatchViolations registers c to receive a notification whenever a
// violation is reported. The returned event must be passed to
// StopWatching when the observer is done.
func (m *Manager) WatchViolations(c chan struct{}) *waiter.Event {
	return m.audit.observers.RegisterChannel(ViolationReported, c)
}

func (m *Manager) StopWatching(e *waiter.Event) {
	m.audit.observers.Unregister(e)
}
