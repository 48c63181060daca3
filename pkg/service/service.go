// Package service owns the namespace, the session registry and the command
// dispatcher, and executes remote calls against them one at a time.
//
// Every exported operation holds a single mutex for its whole duration, so
// the tree and the registry never see concurrent access and need no locks of
// their own. Nothing inside a call blocks on I/O except the optional journal
// append, which never fails the command.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/command"
	"github.com/marmos91/simfs/pkg/fault"
	"github.com/marmos91/simfs/pkg/journal"
	"github.com/marmos91/simfs/pkg/metrics"
	"github.com/marmos91/simfs/pkg/namespace"
	"github.com/marmos91/simfs/pkg/notify"
	"github.com/marmos91/simfs/pkg/session"
)

// Config configures a Service.
type Config struct {
	// RootName is the name of the namespace root
	RootName string

	// Volumes are created at startup in addition to the default C: volume
	Volumes []string

	CaseSensitiveCommands bool

	SessionTimeout time.Duration
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithJournal records every successful command in j.
func WithJournal(j *journal.Journal) Option {
	return func(s *Service) {
		s.journal = j
	}
}

// WithMetrics sets the metrics sink. nil selects the no-op implementation.
func WithMetrics(m metrics.ServiceMetrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithClock replaces time.Now for session expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service is the single-flight façade used by the transport adapters.
type Service struct {
	mu sync.Mutex

	tree       *namespace.Tree
	ops        *namespace.Operations
	sessions   *session.Registry
	dispatcher *command.Dispatcher
	hub        *notify.Hub

	journal       *journal.Journal
	metrics       metrics.ServiceMetrics
	now           func() time.Time
	caseSensitive bool
}

// New builds the namespace and wires the collaborators.
func New(cfg Config, opts ...Option) (*Service, error) {
	s := &Service{
		metrics:       metrics.NewNoopServiceMetrics(),
		now:           time.Now,
		caseSensitive: cfg.CaseSensitiveCommands,
	}
	for _, opt := range opts {
		opt(s)
	}

	tree, err := namespace.New(cfg.RootName)
	if err != nil {
		return nil, fmt.Errorf("invalid root name: %w", err)
	}
	for _, name := range cfg.Volumes {
		if _, ok := tree.Lookup(tree.Root(), name); ok {
			continue
		}
		if _, err := tree.AddVolume(name); err != nil {
			return nil, fmt.Errorf("invalid volume %q: %w", name, err)
		}
	}

	s.tree = tree
	s.ops = namespace.NewOperations(tree)
	s.sessions = session.NewRegistry(cfg.SessionTimeout, session.WithClock(s.now))
	s.hub = notify.NewHub(s.metrics)
	s.dispatcher = command.NewDispatcher(s.ops, s.sessions, s.hub, cfg.CaseSensitiveCommands)

	logger.Info("Namespace %q ready with %d volume(s), session timeout %s",
		tree.Name(tree.Root()), len(tree.Volumes()), s.sessions.Timeout())
	return s, nil
}

// Authorize opens a session for userName.
func (s *Service) Authorize(ctx context.Context, userName string) (*session.AuthorizeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.sessions.Authorize(userName)
	s.metrics.RecordAuth("authorize", errorCode(err))
	if err != nil {
		logger.Debug("Authorize %q failed: %v", userName, err)
		return nil, fault.Wrap(userName, "", err)
	}

	// A successful Authorize means any previous session of this user has
	// expired; its receivers must not see later notifications.
	if n := s.hub.UnsubscribeUser(res.UserName); n > 0 {
		logger.Debug("Closed %d stale subscription(s) of %s", n, res.UserName)
	}

	s.metrics.SetActiveSessions(s.sessions.Count())
	logger.Info("User %s connected (%d session(s))", res.UserName, res.TotalUsers)
	return res, nil
}

// Deauthorize closes the session of userName.
func (s *Service) Deauthorize(ctx context.Context, userName string, token session.Token) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.sessions.Deauthorize(userName, token)
	s.metrics.RecordAuth("deauthorize", errorCode(err))
	if err != nil {
		logger.Debug("Deauthorize %q failed: %v", userName, err)
		return "", fault.Wrap(userName, "", err)
	}

	s.hub.UnsubscribeUser(name)

	s.metrics.SetActiveSessions(s.sessions.Count())
	logger.Info("User %s disconnected", name)
	return name, nil
}

// Execute runs one command line for an authenticated user. On success the
// other authenticated users are notified and the command is journaled.
func (s *Service) Execute(ctx context.Context, userName string, token session.Token, line string) (*command.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	resp, err := s.dispatcher.Execute(userName, token, line)
	s.metrics.RecordCommand(s.verbLabel(line), time.Since(start), errorCode(err))
	if err != nil {
		return nil, err
	}

	logger.Debug("%s: %s", resp.UserName, resp.CommandLine)
	s.record(ctx, resp)
	return resp, nil
}

func (s *Service) record(ctx context.Context, resp *command.Response) {
	if s.journal == nil {
		return
	}

	message := resp.Message
	if resp.Code == command.PrintTree {
		message = ""
	}
	if _, err := s.journal.Append(ctx, resp.UserName, resp.CommandLine, message); err != nil {
		logger.Warn("Failed to journal command %q from %s: %v", resp.CommandLine, resp.UserName, err)
	}
}

// History returns up to limit journaled commands, newest first. The caller
// must be authenticated. An empty list is returned when journaling is off.
func (s *Service) History(ctx context.Context, userName string, token session.Token, limit int) ([]journal.Entry, error) {
	s.mu.Lock()
	_, err := s.sessions.Authenticate(userName, token)
	s.mu.Unlock()
	if err != nil {
		return nil, fault.Wrap(userName, "", err)
	}

	if s.journal == nil {
		return nil, nil
	}
	entries, err := s.journal.Recent(ctx, "", limit)
	if err != nil {
		return nil, fault.Wrap(userName, "", err)
	}
	return entries, nil
}

// Subscribe registers a notification receiver for userName. It lives until
// Unsubscribe or until the user's session is replaced or closed.
func (s *Service) Subscribe(userName string, buffer int) *notify.Subscription {
	return s.hub.Subscribe(userName, buffer)
}

// Unsubscribe removes a receiver registered with Subscribe.
func (s *Service) Unsubscribe(sub *notify.Subscription) {
	s.hub.Unsubscribe(sub)
}

// ActiveUsers returns the users whose sessions have not expired.
func (s *Service) ActiveUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.ActiveUsers()
}

// PrintTree renders the namespace without going through a session.
func (s *Service) PrintTree(printRoot bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ops.PrintTree(printRoot)
}

func (s *Service) verbLabel(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "INVALID"
	}
	code, ok := command.ParseCode(fields[0], s.caseSensitive)
	if !ok {
		return "INVALID"
	}
	return code.String()
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	return fault.CodeOf(err).String()
}
