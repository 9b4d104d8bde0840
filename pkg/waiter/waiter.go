package waiter

import (
	"sync"
)

type EventType uint64

// Waiter fans out event notifications to registered observers. It is
// used by the security subsystem to let interested parties watch for
// audit events without polling the log ring.
type Waiter struct {
	mu sync.RWMutex

	events []*Event
}

type Event struct {
	Mask     EventType
	Context  interface{}
	Callback func(e *Event)
}

func (w *Waiter) Register(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.events = append(w.events, e)
}

func triggerChan(e *Event) {
	c := e.Context.(chan struct{})

	select {
	case c <- struct{}{}:
	default:
	}
}

func (w *Waiter) RegisterChannel(mask EventType, c chan struct{}) *Event {
	e := &Event{
		Callback: triggerChan,
		Context:  c,
		Mask:     mask,
	}

	w.Register(e)

	return e
}

func (w *Waiter) Unregister(e *Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, ev := range w.events {
		if ev == e {
			w.events = append(w.events[:i], w.events[i+1:]...)
			return
		}
	}
}

func (w *Waiter) Notify(mask EventType) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, e := range w.events {
		if e.Mask&mask != 0 {
			e.Callback(e)
		}
	}
}
