package credentials

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/pcexpress-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store persists the credential record through a Backend. No method returns
// a storage error: failures are logged and reported as "absent" or false,
// since dropping a session is always safe and keeping a stale one is not.
//
// mu serialises every multi-key sequence so a concurrent Clear never leaves
// half a record behind and last activity never moves backwards.
type Store struct {
	mu      sync.Mutex
	backend Backend
	prefix  string
	nowTime func() time.Time
	logger  zerolog.Logger
}

// StoreOption defines a function type to modify the Store instance.
type StoreOption func(*Store)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) StoreOption {
	return func(s *Store) {
		s.nowTime = nowFunc
	}
}

// WithKeyPrefix namespaces every owned key.
func WithKeyPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

func WithLogger(l zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

func NewStore(backend Backend, options ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		prefix:  "pcexpress_",
		nowTime: time.Now,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "credentials").Logger()
	return s
}

// Save stores a fresh session: access token, optional refresh token, a new
// session id and the current time as last activity. A failed write clears
// whatever was partially written.
func (s *Store) Save(token, refreshToken string) bool {
	if token == "" {
		s.logger.Warn().Msg("refusing to save empty access token")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowTime()
	err := s.set(KeyToken, token)
	if err == nil {
		if refreshToken != "" {
			err = s.set(KeyRefreshToken, refreshToken)
		} else {
			err = s.remove(KeyRefreshToken)
		}
	}
	if err == nil {
		err = s.set(KeyLastActivity, formatMillis(now))
	}
	if err == nil {
		err = s.set(KeySessionID, newSessionID(now))
	}

	if err != nil {
		s.logger.Error().Err(err).Msg("saving credentials failed")
		s.clear()
		return false
	}
	return true
}

func (s *Store) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(KeyToken)
}

func (s *Store) RefreshToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(KeyRefreshToken)
}

func (s *Store) SessionID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(KeySessionID)
}

func (s *Store) SaveUser(user UserData) bool {
	data, err := json.Marshal(user)
	if err != nil {
		s.logger.Error().Err(err).Msg("encoding user data failed")
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.set(KeyUserData, string(data)); err != nil {
		s.logger.Error().Err(err).Msg("saving user data failed")
		return false
	}
	return true
}

// User returns the stored user payload. Malformed data is treated as absent.
func (s *Store) User() (*UserData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user()
}

func (s *Store) user() (*UserData, bool) {
	raw, ok := s.get(KeyUserData)
	if !ok {
		return nil, false
	}
	var user UserData
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn().Err(err).Msg("discarding malformed user data")
		return nil, false
	}
	return &user, true
}

// TouchActivity records the current time as last activity. The stored value
// never moves backwards, and nothing is written without a stored token so a
// logged-out store stays empty.
func (s *Store) TouchActivity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(KeyToken); !ok {
		return false
	}
	now := s.nowTime()
	if last, ok := s.lastActivity(); ok && last.After(now) {
		return true
	}
	if err := s.set(KeyLastActivity, formatMillis(now)); err != nil {
		s.logger.Error().Err(err).Msg("touching activity failed")
		return false
	}
	return true
}

func (s *Store) LastActivity() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity()
}

func (s *Store) lastActivity() (time.Time, bool) {
	raw, ok := s.get(KeyLastActivity)
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding malformed last activity")
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Clear removes every owned key and the legacy unscoped keys. It is safe to
// call repeatedly.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clear()
}

func (s *Store) clear() bool {
	ok := true
	for _, k := range ownedKeys {
		if err := s.remove(k); err != nil {
			s.logger.Error().Err(err).Str("key", k).Msg("clearing credential failed")
			ok = false
		}
	}
	for _, k := range legacyKeys {
		if err := s.backend.Remove(k); err != nil {
			err = storageError(err, "remove legacy", k)
			s.logger.Error().Err(err).Str("key", k).Msg("clearing legacy credential failed")
			ok = false
		}
	}
	return ok
}

// Load returns a snapshot of the stored record.
func (s *Store) Load() Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	var r Record
	r.AccessToken, _ = s.get(KeyToken)
	r.RefreshToken, _ = s.get(KeyRefreshToken)
	r.SessionID, _ = s.get(KeySessionID)
	r.User, _ = s.user()
	r.LastActivity, _ = s.lastActivity()
	return r
}

func (s *Store) get(key string) (string, bool) {
	v, ok, err := s.backend.Get(s.prefix + key)
	if err != nil {
		s.logger.Warn().Err(storageError(err, "get", key)).Str("key", key).Msg("reading credential failed")
		return "", false
	}
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (s *Store) set(key, value string) error {
	if err := s.backend.Set(s.prefix+key, value); err != nil {
		return storageError(err, "set", key)
	}
	return nil
}

func (s *Store) remove(key string) error {
	if err := s.backend.Remove(s.prefix + key); err != nil {
		return storageError(err, "remove", key)
	}
	return nil
}

// storageError keeps both ErrStorage and the backend error in the chain.
func storageError(err error, op, key string) error {
	return apperrors.Wrapf(err, "%w: %s %s", apperrors.ErrStorage, op, key)
}

func formatMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

// newSessionID is informational only: "<epoch ms>-<random suffix>".
func newSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}
