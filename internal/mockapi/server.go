// Package mockapi is an in-process stand-in for the PC Express remote API. It
// backs the tests and local development.
package mockapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/pcexpress-session/internal/errors"
	"github.com/jrsteele09/pcexpress-session/internal/utils"
	"github.com/jrsteele09/pcexpress-session/inventory"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	RouteToken    = "/auth/token"
	RouteRegister = "/auth/register"

	defaultTokenExpiry = time.Hour
	passwordGrant      = "password"
)

type Server struct {
	router chi.Router
	users  *userRepo
	issuer *tokenIssuer
	logger zerolog.Logger

	noRefresh bool

	mu        sync.Mutex
	products  []inventory.Product
	suppliers []inventory.Supplier
	orders    []inventory.PurchaseOrder
	issued    []string
	revoked   map[string]bool
	failLeft  int
	failCode  int
	hits      map[string]int
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.issuer.now = nowFunc
	}
}

func WithTokenExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.issuer.expiry = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithoutRefreshToken makes the token endpoint return only an access token.
func WithoutRefreshToken() Option {
	return func(s *Server) {
		s.noRefresh = true
	}
}

// New returns a server seeded with the admin account and sample inventory.
func New(options ...Option) *Server {
	s := &Server{
		users: newUserRepo(),
		issuer: &tokenIssuer{
			secret: []byte(uuid.New().String()),
			expiry: defaultTokenExpiry,
			now:    time.Now,
		},
		logger:  log.Logger,
		revoked: make(map[string]bool),
		hits:    make(map[string]int),
	}
	for _, opt := range options {
		opt(s)
	}

	now := s.issuer.now()
	if _, err := s.users.Create(SeedEmail, SeedPassword, now); err != nil {
		s.logger.Error().Err(err).Msg("seeding admin user")
	}
	s.products = seedProducts()
	s.suppliers = seedSuppliers()
	s.orders = seedPurchaseOrders(now)

	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// FailNext makes the next n requests, on any route, answer with status.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLeft = n
	s.failCode = status
}

// Hits is the number of requests received on path, failed ones included.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// RevokeTokens invalidates every access token issued so far.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, jti := range s.issued {
		s.revoked[jti] = true
	}
	s.issued = nil
}

// SetProducts replaces the product catalogue.
func (s *Server) SetProducts(products []inventory.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append([]inventory.Product(nil), products...)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLog)
	r.Use(s.injectFailures)

	r.Post(RouteToken, s.tokenHandler)
	r.Post(RouteRegister, s.registerHandler)
	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Get(inventory.ProductsPath, s.productsHandler)
		r.Get(inventory.SuppliersPath, s.suppliersHandler)
		r.Get(inventory.PurchaseOrdersPath, s.purchaseOrdersHandler)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", chimw.GetReqID(r.Context())).
			Msg("mockapi request")
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		fail := s.failLeft > 0
		code := s.failCode
		if fail {
			s.failLeft--
		}
		s.mu.Unlock()

		if fail {
			writeError(w, code, http.StatusText(code))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			unauthorized(w)
			return
		}
		jti, _, err := s.issuer.verify(raw)
		if err != nil || s.isRevoked(jti) {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[jti]
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed form body")
		return
	}
	if gt := r.PostForm.Get("grant_type"); gt != "" && gt != passwordGrant {
		writeError(w, http.StatusBadRequest, "Unsupported grant type")
		return
	}
	email := r.PostForm.Get("username")
	password := r.PostForm.Get("password")
	if email == "" || password == "" {
		writeValidationError(w, "username and password are required")
		return
	}

	user, ok := s.users.Authenticate(email, password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	access, jti, err := s.issuer.accessToken(user)
	if err != nil {
		s.logger.Error().Err(apperrors.Wrapf(err, "%w: [tokenHandler] sign", apperrors.ErrInternal)).Msg("issuing access token")
		writeError(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	s.mu.Lock()
	s.issued = append(s.issued, jti)
	s.mu.Unlock()

	resp := TokenResponse{
		AccessToken: utils.Ptr(access),
		TokenType:   "bearer",
		ExpiresIn:   int(s.issuer.expiry.Seconds()),
	}
	if !s.noRefresh {
		resp.RefreshToken = utils.Ptr(uuid.New().String())
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "body must be a JSON object")
		return
	}
	if !strings.Contains(req.Email, "@") || req.Password == "" {
		writeValidationError(w, "a valid email and password are required")
		return
	}
	user, err := s.users.Create(req.Email, req.Password, s.issuer.now())
	if err != nil {
		if apperrors.Is(err, errUserExists) {
			writeError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		s.logger.Error().Err(apperrors.Wrapf(err, "%w: [registerHandler] create user", apperrors.ErrInternal)).Msg("registration failed")
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) productsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	products := append([]inventory.Product(nil), s.products...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) suppliersHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	suppliers := append([]inventory.Supplier(nil), s.suppliers...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, suppliers)
}

func (s *Server) purchaseOrdersHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	orders := append([]inventory.PurchaseOrder(nil), s.orders...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, orders)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "Could not validate credentials")
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}

func writeValidationError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]string{{"msg": msg}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
