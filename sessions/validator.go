package sessions

import "time"

// DefaultSessionTimeout is the inactivity window after which a session is
// considered expired.
const DefaultSessionTimeout = 30 * time.Minute

// CredentialReader is the read side of the credential store that session
// decisions are made from.
type CredentialReader interface {
	Token() (string, bool)
	LastActivity() (time.Time, bool)
	SessionID() (string, bool)
}

// Validator decides from stored timestamps whether a session is still live.
// It only reads.
type Validator struct {
	store   CredentialReader
	timeout time.Duration
	nowTime func() time.Time
}

func NewValidator(store CredentialReader, timeout time.Duration, nowTime func() time.Time) *Validator {
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if nowTime == nil {
		nowTime = time.Now
	}
	return &Validator{store: store, timeout: timeout, nowTime: nowTime}
}

// IsValid is true iff a token is stored and now - last_activity is strictly
// less than the timeout.
func (v *Validator) IsValid() bool {
	if _, ok := v.store.Token(); !ok {
		return false
	}
	last, ok := v.store.LastActivity()
	if !ok {
		return false
	}
	return v.nowTime().Sub(last) < v.timeout
}

// Remaining returns how long the session has left, or zero if it has none.
func (v *Validator) Remaining() time.Duration {
	last, ok := v.store.LastActivity()
	if !ok {
		return 0
	}
	left := v.timeout - v.nowTime().Sub(last)
	if left < 0 {
		return 0
	}
	return left
}

// DetectHardRefresh reports a stale leftover session on start-up. A first
// visit (no session id or last activity) is never an anomaly. Otherwise it
// is a staleness check against the same timeout as IsValid and does not
// distinguish a reload from any other restart.
func (v *Validator) DetectHardRefresh() bool {
	if _, ok := v.store.SessionID(); !ok {
		return false
	}
	last, ok := v.store.LastActivity()
	if !ok {
		return false
	}
	return v.nowTime().Sub(last) > v.timeout
}

func (v *Validator) Timeout() time.Duration {
	return v.timeout
}
