package authtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/middleware"
	"github.com/google/uuid"
)

// Default endpoint paths, matching goSession.DefaultConfig.
const (
	LoginPath    = "/auth/login"
	RefreshPath  = "/auth/refresh"
	IdentityPath = "/auth/me"
	LogoutPath   = "/auth/logout"
)

var errUnknownToken = errors.New("unknown access token")

// Options configures a [Server].
type Options struct {
	// Users maps username to password. Defaults to {"ada": "lovelace"}.
	Users     map[string]string
	AccessTTL time.Duration
	// ReportExpiresIn adds expiresIn (AccessTTL in seconds) to token responses.
	ReportExpiresIn bool
	// KeepRefreshToken disables rotation: refresh answers without a new refresh token and
	// the presented one stays valid.
	KeepRefreshToken bool
}

// Identity is the JSON body served at the identity endpoint.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
}

// Server is the fake backend. Create it with [NewServer] and Close it when done.
type Server struct {
	*httptest.Server

	opts Options
	jwt  *jwt.Signer
	mux  *http.ServeMux

	mu            sync.Mutex
	access        map[string]string // token -> username
	refresh       map[string]string // token -> username
	refreshCalls  int
	refreshStatus int
	hold          chan struct{}
	seen          map[string][]string
	refreshing    chan struct{}
}

// NewServer starts a server.
func NewServer(opts Options) *Server {
	if opts.Users == nil {
		opts.Users = map[string]string{"ada": "lovelace"}
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}

	signer, err := jwt.NewSigner(jwt.SignerConfig{
		Key:    []byte(uuid.NewString() + uuid.NewString()),
		TTL:    opts.AccessTTL,
		Issuer: "authtest",
	})
	if err != nil {
		panic("authtest: " + err.Error())
	}

	s := &Server{
		opts:       opts,
		jwt:        signer,
		mux:        http.NewServeMux(),
		access:     make(map[string]string),
		refresh:    make(map[string]string),
		seen:       make(map[string][]string),
		refreshing: make(chan struct{}, 64),
	}

	s.mux.HandleFunc("POST "+LoginPath, s.handleLogin)
	s.mux.HandleFunc("POST "+RefreshPath, s.handleRefresh)
	s.mux.HandleFunc("POST "+LogoutPath, s.handleLogout)
	s.Handle(IdentityPath, http.HandlerFunc(s.handleIdentity))

	s.Server = httptest.NewServer(s.mux)
	return s
}

// Handle registers a guarded resource at path. Requests without a currently valid access
// token get 401 before reaching h.
func (s *Server) Handle(path string, h http.Handler) {
	s.mux.Handle(path, s.record(path, middleware.Guard(s.verify)(h)))
}

// HandleOK registers a guarded resource answering 200 with body.
func (s *Server) HandleOK(path, body string) {
	s.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
}

// Issue creates a valid credential for username without a login round trip.
func (s *Server) Issue(username string) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(username)
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	clear(s.access)
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	clear(s.refresh)
	s.mu.Unlock()
}

// HoldRefresh makes refresh calls block until [Server.ReleaseRefresh].
func (s *Server) HoldRefresh() {
	s.mu.Lock()
	s.hold = make(chan struct{})
	s.mu.Unlock()
}

// ReleaseRefresh unblocks held refresh calls.
func (s *Server) ReleaseRefresh() {
	s.mu.Lock()
	if s.hold != nil {
		close(s.hold)
		s.hold = nil
	}
	s.mu.Unlock()
}

// FailRefresh makes refresh answer status; 0 restores normal behavior.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	s.refreshStatus = status
	s.mu.Unlock()
}

// Refreshing receives one value each time a refresh call arrives, before it is held.
func (s *Server) Refreshing() <-chan struct{} {
	return s.refreshing
}

// RefreshCalls returns the number of refresh calls received.
func (s *Server) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// Seen returns the Authorization header of every request to a guarded path, in arrival
// order. Requests without the header record "".
func (s *Server) Seen(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen[path]...)
}

// Hits returns the number of requests to a guarded path.
func (s *Server) Hits(path string) int {
	return len(s.Seen(path))
}

func (s *Server) record(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.seen[path] = append(s.seen[path], r.Header.Get("Authorization"))
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) verify(_ context.Context, token string) (string, error) {
	if _, err := s.jwt.Verify(token); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.access[token]
	if !ok {
		return "", errUnknownToken
	}
	return user, nil
}

func (s *Server) issueLocked(username string) (string, string) {
	access, err := s.jwt.Sign("user-"+username, username+"@example.com", username)
	if err != nil {
		panic("authtest: " + err.Error())
	}
	refresh := uuid.NewString()
	s.access[access] = username
	s.refresh[refresh] = username
	return access, refresh
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	want, ok := s.opts.Users[body.Username]
	if !ok || want != body.Password {
		s.mu.Unlock()
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	access, refresh := s.issueLocked(body.Username)
	s.mu.Unlock()

	s.writeTokens(w, access, refresh)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		token = body.RefreshToken
	}

	s.mu.Lock()
	s.refreshCalls++
	hold := s.hold
	s.mu.Unlock()

	select {
	case s.refreshing <- struct{}{}:
	default:
	}
	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	if s.refreshStatus != 0 {
		status := s.refreshStatus
		s.mu.Unlock()
		http.Error(w, http.StatusText(status), status)
		return
	}
	user, ok := s.refresh[token]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "invalid refresh token", http.StatusUnauthorized)
		return
	}
	var access, next string
	if s.opts.KeepRefreshToken {
		access, _ = s.issueLocked(user)
	} else {
		delete(s.refresh, token)
		access, next = s.issueLocked(user)
	}
	s.mu.Unlock()

	s.writeTokens(w, access, next)
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.SubjectFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Identity{
		ID:    "user-" + user,
		Email: user + "@example.com",
		Name:  user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	access, _ := middleware.BearerToken(r.Header.Get("Authorization"))

	s.mu.Lock()
	delete(s.access, access)
	delete(s.refresh, body.RefreshToken)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeTokens(w http.ResponseWriter, access, refresh string) {
	body := tokenBody{AccessToken: access, RefreshToken: refresh}
	if s.opts.ReportExpiresIn {
		body.ExpiresIn = int64(s.opts.AccessTTL / time.Second)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
