package sessions

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/jrsteele09/pcexpress-session/activity"
	"github.com/jrsteele09/pcexpress-session/api"
	"github.com/jrsteele09/pcexpress-session/credentials"
	"github.com/jrsteele09/pcexpress-session/internal/config"
	apperrors "github.com/jrsteele09/pcexpress-session/internal/errors"
	"github.com/jrsteele09/pcexpress-session/pipeline"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	loginFailedMsg        = "Login failed"
	registrationFailedMsg = "Registration failed"
	invalidInputMsg       = "A valid email address and password are required"
	storageFailedMsg      = "Could not store the session"
)

// CredentialStore is everything the controller needs from the credential
// store.
type CredentialStore interface {
	CredentialReader
	Save(token, refreshToken string) bool
	RefreshToken() (string, bool)
	SaveUser(user credentials.UserData) bool
	User() (*credentials.UserData, bool)
	TouchActivity() bool
	Clear() bool
}

// Result is the outcome of Login and Register. Failures are reported here,
// never as a returned error.
type Result struct {
	Success bool
	Error   string
}

// State is a snapshot of the in-memory session.
type State struct {
	Token          string
	User           *credentials.UserData
	Loading        bool
	SessionExpired bool
	Authenticated  bool
}

type credentialsInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Controller orchestrates login, registration, logout and start-up
// rehydration. It is the only session component the rest of the application
// talks to.
type Controller struct {
	cfg       config.Config
	store     CredentialStore
	validator *Validator
	monitor   *activity.Monitor
	events    activity.EventSource
	base      http.RoundTripper
	metrics   *pipeline.Metrics
	logger    zerolog.Logger
	nowTime   func() time.Time
	clock     clockwork.Clock
	sleep     func(ctx context.Context, d time.Duration) error
	validate  *validator.Validate

	pipeline   atomic.Pointer[pipeline.Pipeline]
	httpClient *http.Client
	api        *api.Client

	// public carries the token and register calls: retried and counted, but
	// never authenticated and never able to force a logout.
	public       atomic.Pointer[pipeline.Pipeline]
	publicClient *http.Client
	publicAPI    *api.Client

	mu             sync.RWMutex
	token          string
	user           *credentials.UserData
	loading        bool
	sessionExpired bool
	session        uint64 // bumps on every session start and teardown
	stopMonitor    func()
	onChange       func(State)
}

// Option defines a function type to modify the Controller instance.
type Option func(*Controller)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// WithClock drives the inactivity timer, the retry backoff and the
// validator's notion of now from one clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
		c.nowTime = clock.Now
	}
}

// WithTransport sets the transport underneath the middleware chain.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Controller) {
		c.base = rt
	}
}

// WithEventSource sets where user interaction events come from. Defaults to
// a fresh activity.Bus.
func WithEventSource(src activity.EventSource) Option {
	return func(c *Controller) {
		c.events = src
	}
}

func WithMetrics(m *pipeline.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithRetrySleep replaces the wait between retries (primarily for testing).
func WithRetrySleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// WithStateListener is called with a fresh snapshot after every state change.
func WithStateListener(fn func(State)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// New creates a controller. Call Initialize before use.
func New(cfg config.Config, store CredentialStore, options ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("[sessions New] config is required")
	}
	if store == nil {
		return nil, errors.New("[sessions New] credential store is required")
	}

	c := &Controller{
		cfg:      cfg,
		store:    store,
		logger:   log.Logger,
		nowTime:  time.Now,
		clock:    clockwork.NewRealClock(),
		validate: validator.New(),
		loading:  true,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.base == nil {
		c.base = defaultTransport(cfg.GetRequestTimeout())
	}
	if c.events == nil {
		c.events = activity.NewBus()
	}
	c.logger = c.logger.With().Str("component", "sessions").Logger()
	c.validator = NewValidator(store, cfg.GetSessionTimeout(), c.nowTime)
	c.monitor = activity.NewMonitor(store, c.validator, cfg.GetSessionTimeout(),
		activity.WithClock(c.clock),
		activity.WithLogger(c.logger),
	)

	c.buildPipelines()
	c.httpClient = &http.Client{Transport: pipelineTransport{&c.pipeline}}
	c.api = api.NewClient(cfg.GetAPIBaseURL(), c.httpClient)
	c.publicClient = &http.Client{Transport: pipelineTransport{&c.public}}
	c.publicAPI = api.NewClient(cfg.GetAPIBaseURL(), c.publicClient)
	return c, nil
}

// Initialize restores a surviving session after start-up, or clears any
// leftover credentials. It rebuilds the request pipeline from scratch, so
// calling it again never stacks middleware.
func (c *Controller) Initialize() {
	c.buildPipelines()

	c.mu.Lock()
	c.loading = true
	c.mu.Unlock()

	switch {
	case c.validator.DetectHardRefresh():
		c.logger.Info().Msg("stale session found on start-up, clearing credentials")
		c.logout(0, false)

	default:
		token, hasToken := c.store.Token()
		user, hasUser := c.store.User()
		if !c.validator.IsValid() || !hasToken || !hasUser {
			c.logout(0, false)
			break
		}
		c.store.TouchActivity()

		c.mu.Lock()
		c.token = token
		c.user = user
		c.sessionExpired = false
		c.startMonitorLocked()
		c.mu.Unlock()
		c.logger.Info().Str("email", user.Email).Msg("session restored")
	}

	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
	c.notify()
}

// Login exchanges email and password for tokens at the token endpoint.
func (c *Controller) Login(ctx context.Context, email, password string) Result {
	if err := c.validate.Struct(credentialsInput{Email: email, Password: password}); err != nil {
		c.logger.Debug().Err(apperrors.Wrapf(err, "%w: [Login]", apperrors.ErrInvalidInput)).Msg("login rejected")
		return Result{Error: invalidInputMsg}
	}

	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.GetAPIBaseURL() + c.cfg.GetTokenPath(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	tok, err := conf.PasswordCredentialsToken(context.WithValue(ctx, oauth2.HTTPClient, c.publicClient), email, password)
	if err != nil {
		c.logger.Warn().Err(loginError(err)).Str("email", email).Msg("login failed")
		return Result{Error: loginErrorMessage(err)}
	}

	// The store is written under mu so a concurrent logout cannot clear it
	// between the save and the in-memory update.
	user := credentials.UserData{Email: email, LoginTime: c.nowTime().UnixMilli()}
	c.mu.Lock()
	if !c.store.Save(tok.AccessToken, tok.RefreshToken) {
		c.mu.Unlock()
		return Result{Error: storageFailedMsg}
	}
	if !c.store.SaveUser(user) {
		c.store.Clear()
		c.mu.Unlock()
		return Result{Error: storageFailedMsg}
	}
	c.token = tok.AccessToken
	c.user = &user
	c.sessionExpired = false
	c.startMonitorLocked()
	c.mu.Unlock()

	c.logger.Info().Str("email", email).Msg("logged in")
	c.notify()
	return Result{Success: true}
}

// Register creates an account. It does not log the user in.
func (c *Controller) Register(ctx context.Context, email, password string) Result {
	if err := c.validate.Struct(credentialsInput{Email: email, Password: password}); err != nil {
		c.logger.Debug().Err(apperrors.Wrapf(err, "%w: [Register]", apperrors.ErrInvalidInput)).Msg("registration rejected")
		return Result{Error: invalidInputMsg}
	}

	if err := c.publicAPI.Post(ctx, c.cfg.GetRegisterPath(), registerRequest{Email: email, Password: password}, nil); err != nil {
		c.logger.Warn().Err(errors.Wrap(err, "[Register] request failed")).Str("email", email).Msg("registration failed")
		return Result{Error: api.Message(err, registrationFailedMsg)}
	}
	c.logger.Info().Str("email", email).Msg("registered")
	return Result{Success: true}
}

// Logout tears down the session. It performs no network I/O, so it is safe
// to call from inside the request pipeline, and it is idempotent.
func (c *Controller) Logout() {
	c.logout(0, false)
}

// logout clears memory and storage in one critical section. A non-zero
// session only tears down that session; a newer one is left alone.
func (c *Controller) logout(session uint64, expired bool) {
	c.mu.Lock()
	if session != 0 && session != c.session {
		c.mu.Unlock()
		c.logger.Debug().Uint64("session", session).Msg("ignoring expiry of a finished session")
		return
	}
	c.session++
	if c.stopMonitor != nil {
		c.stopMonitor()
		c.stopMonitor = nil
	}
	c.token = ""
	c.user = nil
	c.sessionExpired = expired
	c.store.Clear()
	c.mu.Unlock()

	c.notify()
}

// IsAuthenticated is derived from token and user; it is never stored.
func (c *Controller) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" && c.user != nil
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

// HTTPClient returns a client whose requests pass through the session
// pipeline.
func (c *Controller) HTTPClient() *http.Client {
	return c.httpClient
}

// API returns a JSON client bound to the session pipeline.
func (c *Controller) API() *api.Client {
	return c.api
}

// Events is the event source the inactivity monitor listens to.
func (c *Controller) Events() activity.EventSource {
	return c.events
}

// Pipeline returns the middleware chain currently in use.
func (c *Controller) Pipeline() *pipeline.Pipeline {
	return c.pipeline.Load()
}

// buildPipelines replaces both chains, so re-initialising never stacks
// middleware.
func (c *Controller) buildPipelines() {
	policy := pipeline.RetryPolicy{
		MaxRetries: c.cfg.GetMaxRetries(),
		BaseDelay:  c.cfg.GetRetryBaseDelay(),
		Sleep:      c.sleep,
		Clock:      c.clock,
		Metrics:    c.metrics,
		Logger:     &c.logger,
	}
	c.pipeline.Store(pipeline.New(c.base,
		pipeline.Retry(policy),
		pipeline.SessionGuard(c.store, c.handleUnauthorized),
		pipeline.BearerAuth(c.store),
		pipeline.Instrument(c.metrics),
	))
	c.public.Store(pipeline.New(c.base,
		pipeline.Retry(policy),
		pipeline.Instrument(c.metrics),
	))
}

func (c *Controller) handleUnauthorized(req *http.Request) {
	c.logger.Warn().Str("method", req.Method).Str("path", req.URL.Path).Msg("unauthorized response, logging out")
	c.metrics.LoggedOut()
	c.logout(0, false)
}

func (c *Controller) handleExpired(session uint64) {
	c.logger.Info().Err(apperrors.ErrSessionExpired).Uint64("session", session).Msg("session timed out")
	c.logout(session, true)
}

// startMonitorLocked always disposes the previous monitor run first. The
// expiry callback is bound to the session it was started for.
func (c *Controller) startMonitorLocked() {
	if c.stopMonitor != nil {
		c.stopMonitor()
	}
	c.session++
	session := c.session
	c.stopMonitor = c.monitor.Start(c.events, func() { c.handleExpired(session) })
}

func (c *Controller) stateLocked() State {
	var user *credentials.UserData
	if c.user != nil {
		u := *c.user
		user = &u
	}
	return State{
		Token:          c.token,
		User:           user,
		Loading:        c.loading,
		SessionExpired: c.sessionExpired,
		Authenticated:  c.token != "" && c.user != nil,
	}
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.onChange(c.State())
}

// loginError tags a rejected password grant as invalid credentials.
func loginError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode == http.StatusUnauthorized {
		return apperrors.Wrapf(err, "%w: [Login] token request", apperrors.ErrInvalidCredentials)
	}
	return errors.Wrap(err, "[Login] token request failed")
}

func loginErrorMessage(err error) string {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		if msg := api.MessageFromBody(rerr.Body); msg != "" {
			return msg
		}
		if rerr.ErrorDescription != "" {
			return rerr.ErrorDescription
		}
	}
	return loginFailedMsg
}

// pipelineTransport always routes through the most recently built chain, so
// clients handed out before a re-initialisation stay current.
type pipelineTransport struct {
	p *atomic.Pointer[pipeline.Pipeline]
}

func (t pipelineTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.p.Load().RoundTrip(req)
}

func defaultTransport(timeout time.Duration) http.RoundTripper {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = timeout
	return tr
}
