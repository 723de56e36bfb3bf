package activity

import "sync"

// Event is a user interaction reported by the presentation layer.
type Event int

const (
	PointerDown Event = iota + 1
	PointerMove
	KeyPress
	Scroll
	TouchStart
	Click
)

var eventNames = map[Event]string{
	PointerDown: "pointerdown",
	PointerMove: "pointermove",
	KeyPress:    "keypress",
	Scroll:      "scroll",
	TouchStart:  "touchstart",
	Click:       "click",
}

func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return "unknown"
}

// Qualifies reports whether the event counts as user engagement.
func (e Event) Qualifies() bool {
	_, ok := eventNames[e]
	return ok
}

// EventSource delivers interaction events to subscribers until the returned
// unsubscribe function is called.
type EventSource interface {
	Subscribe(handler func(Event)) (unsubscribe func())
}

var _ EventSource = (*Bus)(nil)

// Bus is an in-process EventSource. The UI layer calls Emit.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

func (b *Bus) Subscribe(handler func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.subs[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

// Emit delivers e to every current subscriber on the caller's goroutine.
func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
