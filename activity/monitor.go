package activity

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State of the inactivity monitor.
type State int

const (
	Idle State = iota
	Armed
	Fired
	Stopped
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// ActivityToucher records user activity in the credential store.
type ActivityToucher interface {
	TouchActivity() bool
}

// Checker independently confirms expiry before the monitor fires.
type Checker interface {
	IsValid() bool
	Remaining() time.Duration
}

// Monitor keeps a session alive while the user is engaged and signals expiry
// once engagement stops for the whole timeout.
//
// Armed -> Armed on any qualifying event (timer reset, activity touched).
// Armed -> Fired when the timer elapses and the Checker agrees the session
// is no longer valid. If the Checker still reports a live session (activity
// was touched elsewhere, e.g. by a successful request) the timer is re-armed
// for the remaining window instead.
type Monitor struct {
	clock   clockwork.Clock
	timeout time.Duration
	store   ActivityToucher
	checker Checker
	logger  zerolog.Logger

	mu          sync.Mutex
	state       State
	timer       clockwork.Timer
	generation  uint64 // bumps on every (re)arm so stale timer callbacks are ignored
	run         uint64 // bumps on every Start so old disposers are inert
	onExpire    func()
	unsubscribe func()
}

// MonitorOption defines a function type to modify the Monitor instance.
type MonitorOption func(*Monitor)

func WithClock(c clockwork.Clock) MonitorOption {
	return func(m *Monitor) {
		m.clock = c
	}
}

func WithLogger(l zerolog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = l
	}
}

func NewMonitor(store ActivityToucher, checker Checker, timeout time.Duration, options ...MonitorOption) *Monitor {
	m := &Monitor{
		clock:   clockwork.NewRealClock(),
		timeout: timeout,
		store:   store,
		checker: checker,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "activity").Logger()
	return m
}

// Start arms the monitor against src. onExpire is invoked at most once per
// Start. The returned disposer cancels the timer and detaches from src; it is
// idempotent and becomes a no-op once Start is called again.
//
// onExpire runs outside the monitor's lock, so a call already under way when
// Start is called again can still land. Callers bind it to the session it was
// started for.
func (m *Monitor) Start(src EventSource, onExpire func()) (dispose func()) {
	m.mu.Lock()
	prevUnsub := m.teardownLocked()
	m.run++
	run := m.run
	m.onExpire = onExpire
	m.state = Armed
	m.armLocked(m.timeout)
	m.mu.Unlock()

	if prevUnsub != nil {
		prevUnsub()
	}

	unsub := src.Subscribe(m.handle)

	m.mu.Lock()
	if m.run != run || m.state == Stopped {
		// disposed while subscribing
		m.mu.Unlock()
		unsub()
	} else {
		m.unsubscribe = unsub
		m.mu.Unlock()
	}

	return func() {
		m.mu.Lock()
		if m.run != run {
			m.mu.Unlock()
			return
		}
		u := m.teardownLocked()
		m.mu.Unlock()
		if u != nil {
			u()
		}
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) handle(e Event) {
	if !e.Qualifies() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Armed {
		return
	}
	m.store.TouchActivity()
	m.armLocked(m.timeout)
}

// armLocked always stops the previous timer before creating a new one.
func (m *Monitor) armLocked(d time.Duration) {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.generation++
	gen := m.generation
	m.timer = m.clock.AfterFunc(d, func() { m.expire(gen) })
}

func (m *Monitor) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.generation || m.state != Armed {
		m.mu.Unlock()
		return
	}
	if m.checker.IsValid() {
		if left := m.checker.Remaining(); left > 0 {
			m.logger.Debug().Dur("remaining", left).Msg("session still active, re-arming")
			m.armLocked(left)
			m.mu.Unlock()
			return
		}
	}
	m.state = Fired
	m.timer = nil
	cb := m.onExpire
	m.onExpire = nil
	run := m.run
	m.mu.Unlock()

	m.logger.Info().Msg("session expired after inactivity")
	if cb == nil || !m.current(run) {
		return
	}
	cb()
}

func (m *Monitor) current(run uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run == run
}

func (m *Monitor) teardownLocked() func() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.generation++
	if m.state != Idle {
		m.state = Stopped
	}
	m.onExpire = nil
	u := m.unsubscribe
	m.unsubscribe = nil
	return u
}
