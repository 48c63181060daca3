// Package session implements the session registry: token issuance, lazy
// expiry and the per-user working directory.
//
// There is at most one session per user name (compared after normalization).
// Expired sessions are not swept in the background; they are detected when
// the owner authenticates or when the same user authorizes again.
//
// Thread Safety:
// Registry is not safe for concurrent use. The service that owns it
// serializes all calls.
package session

import (
	"sort"
	"strings"
	"time"

	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/fault"
	"github.com/marmos91/simfs/pkg/namespace"
)

// DefaultTimeout is the inactivity period after which a session expires.
const DefaultTimeout = 120 * time.Second

// Session binds a user to a token, an activity timestamp and a working
// directory.
type Session struct {
	// UserName is the name as given to Authorize
	UserName string

	Token Token

	LastActivity time.Time

	// CurrentDirectory is empty until the first successful ChangeDirectory
	CurrentDirectory string
}

// AuthorizeResult is returned by a successful Authorize.
type AuthorizeResult struct {
	UserName   string
	Token      Token
	TotalUsers int
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry holds the sessions keyed by normalized user name.
type Registry struct {
	sessions map[string]*Session
	tokens   *TokenProvider
	timeout  time.Duration
	now      func() time.Time
}

// NewRegistry creates a registry. A non-positive timeout selects
// DefaultTimeout.
func NewRegistry(timeout time.Duration, opts ...Option) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	r := &Registry{
		sessions: make(map[string]*Session),
		tokens:   NewTokenProvider(),
		timeout:  timeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the session inactivity timeout.
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}

func (r *Registry) expired(s *Session, now time.Time) bool {
	return now.Sub(s.LastActivity) > r.timeout
}

func validateUserName(userName string) error {
	if strings.TrimSpace(userName) == "" {
		return fault.New(fault.ErrValidation, "user name cannot be empty")
	}
	return nil
}

// Authorize opens a session for userName. It fails if the user already has a
// live session; an expired one is replaced.
func (r *Registry) Authorize(userName string) (*AuthorizeResult, error) {
	if err := validateUserName(userName); err != nil {
		return nil, err
	}

	key := namespace.Normalize(userName)
	now := r.now()
	if existing, ok := r.sessions[key]; ok {
		if !r.expired(existing, now) {
			return nil, fault.WithPath(fault.ErrAuthFailure, "user is already connected", existing.UserName)
		}
		logger.Debug("Replacing expired session for %s (idle since %s)",
			existing.UserName, existing.LastActivity.Format(time.RFC3339))
	}

	token, err := r.tokens.Generate()
	if err != nil {
		return nil, err
	}

	s := &Session{
		UserName:     strings.TrimSpace(userName),
		Token:        token,
		LastActivity: now,
	}
	r.sessions[key] = s

	return &AuthorizeResult{
		UserName:   s.UserName,
		Token:      token,
		TotalUsers: len(r.sessions),
	}, nil
}

// Deauthorize closes the session of userName. The token must match; expiry
// is ignored.
func (r *Registry) Deauthorize(userName string, token Token) (string, error) {
	if err := validateUserName(userName); err != nil {
		return "", err
	}

	key := namespace.Normalize(userName)
	s, ok := r.sessions[key]
	if !ok {
		return "", fault.WithPath(fault.ErrAuthFailure, "user is not connected", userName)
	}
	if !r.tokens.Equal(s.Token, token) {
		return "", fault.WithPath(fault.ErrAuthFailure, "invalid session token", userName)
	}

	delete(r.sessions, key)
	return s.UserName, nil
}

// Authenticate checks userName and token against a live session and
// refreshes its activity timestamp. It returns a copy of the session.
func (r *Registry) Authenticate(userName string, token Token) (Session, error) {
	if err := validateUserName(userName); err != nil {
		return Session{}, err
	}

	s, ok := r.sessions[namespace.Normalize(userName)]
	if !ok {
		return Session{}, fault.WithPath(fault.ErrAuthFailure, "user is not connected", userName)
	}
	if !r.tokens.Equal(s.Token, token) {
		return Session{}, fault.WithPath(fault.ErrAuthFailure, "invalid session token", userName)
	}

	now := r.now()
	if r.expired(s, now) {
		return Session{}, fault.WithPath(fault.ErrAuthFailure, "session expired", userName)
	}

	s.LastActivity = now
	return *s, nil
}

// SetCurrentDirectory records the working directory of userName.
func (r *Registry) SetCurrentDirectory(userName, dir string) error {
	s, ok := r.sessions[namespace.Normalize(userName)]
	if !ok {
		return fault.WithPath(fault.ErrAuthFailure, "user is not connected", userName)
	}
	s.CurrentDirectory = dir
	return nil
}

// ActiveUsers returns the user names of all sessions that have not expired,
// ordered by normalized name.
func (r *Registry) ActiveUsers() []string {
	now := r.now()
	keys := make([]string, 0, len(r.sessions))
	for k, s := range r.sessions {
		if !r.expired(s, now) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	users := make([]string, len(keys))
	for i, k := range keys {
		users[i] = r.sessions[k].UserName
	}
	return users
}

// Count returns the number of sessions, expired ones included.
func (r *Registry) Count() int {
	return len(r.sessions)
}
