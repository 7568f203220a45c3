// Package fakeapi provides a fake CollabNotes REST API for testing purposes.
// It keeps users, notes and tags in memory and implements the endpoints the
// client talks to, with the same status codes and error bodies.
//
// Routes are served with gorilla/mux. Tokens are HS256 JWTs whose subject is
// the user ID, and passwords are stored as bcrypt hashes.
//
// To flexibly inject failures, add failure rules that match a method and a
// route template (e.g. "/api/notes/{id}/share") together with how the request
// fails: a forced status with an error body, a delay or a malformed body.
// Every request is recorded so tests can assert that nothing was sent.
package fakeapi

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/collabnotes/collabnotes.go/pkg/models"
)

// cryptoRandInt64 generates a cryptographically secure random int64 in [0, max)
func cryptoRandInt64(rMax int64) int64 {
	if rMax <= 0 {
		return 0
	}
	n, _ := rand.Int(rand.Reader, big.NewInt(rMax))
	return n.Int64()
}

// cryptoRandFloat64 generates a cryptographically secure random float64 in [0.0, 1.0)
func cryptoRandFloat64() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(1<<53))
	return float64(n.Int64()) / float64(1<<53)
}

type account struct {
	user models.User
	hash []byte
}

type noteRecord struct {
	note   models.Note
	shared map[models.UserID]bool
}

// Request is one recorded request.
type Request struct {
	Method string
	// Route is the matched route template, or the raw path when no route matched.
	Route         string
	URL           string
	Authorization string
	RequestID     string
}

// Server is an in-memory fake of the CollabNotes API.
type Server struct {
	addr     string
	listener net.Listener
	http     *http.Server
	router   *mux.Router
	logger   zerolog.Logger

	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	accounts map[models.UserID]*account
	byEmail  map[string]models.UserID
	notes    map[models.NoteID]*noteRecord
	tags     map[string]models.Tag
	epoch    int
	nextUser int64
	nextNote int64
	nextTag  int64

	rules          []Rule
	globalFailures []FailureConfig
	requests       []Request
}

type Option func(*Server)

// WithClock replaces time.Now, e.g. to produce distinct timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

func WithSecret(secret []byte) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new fake API server.
// Use "127.0.0.1:0" to bind to a random available port, or serve it with
// httptest through its Handler.
func NewServer(addr string, opts ...Option) *Server {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)

	s := &Server{
		addr:     addr,
		logger:   zerolog.Nop(),
		secret:   secret,
		tokenTTL: 30 * time.Minute,
		now:      func() time.Time { return time.Now().UTC() },
		accounts: make(map[models.UserID]*account),
		byEmail:  make(map[string]models.UserID),
		notes:    make(map[models.NoteID]*noteRecord),
		tags:     make(map[string]models.Tag),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the routed handler, for use with httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.http = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("fake api server error")
		}
	}()

	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

// Address returns the actual address the server is listening on.
// This is useful when using "127.0.0.1:0" to get the assigned port.
func (s *Server) Address() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// URL returns the base URL of a started server.
func (s *Server) URL() string {
	return "http://" + s.Address()
}

// Requests returns a copy of the request log.
func (s *Server) Requests() []Request {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Request(nil), s.requests...)
}

// RequestCount counts recorded requests for a method and route template.
// An empty method matches any method.
func (s *Server) RequestCount(method, route string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.requests {
		if (method == "" || r.Method == method) && r.Route == route {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// ExpireTokens invalidates every token issued so far. The next authenticated
// request with an old token gets a 401.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}

func (s *Server) record(r *http.Request, route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, Request{
		Method:        r.Method,
		Route:         route,
		URL:           r.URL.String(),
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
