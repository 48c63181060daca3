package command

import (
	"fmt"
	"strings"

	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/fault"
	"github.com/marmos91/simfs/pkg/namespace"
	"github.com/marmos91/simfs/pkg/notify"
	"github.com/marmos91/simfs/pkg/session"
)

// rootFlag is the optional PRINT parameter that includes the root line.
const rootFlag = "Root"

// Publisher receives a notification after every successful command.
type Publisher interface {
	Publish(recipients []string, n notify.Notification)
}

// Response is the result of a successful command.
type Response struct {
	UserName         string
	CurrentDirectory string
	CommandLine      string
	Message          string

	// Code is the verb that was executed
	Code Code
}

// Dispatcher authenticates command lines against the session registry and
// routes them to the namespace engine.
//
// It holds no lock: the owner must serialize calls.
type Dispatcher struct {
	ops           *namespace.Operations
	sessions      *session.Registry
	publisher     Publisher
	caseSensitive bool
}

// NewDispatcher wires a dispatcher. publisher may be nil.
func NewDispatcher(ops *namespace.Operations, sessions *session.Registry, publisher Publisher, caseSensitive bool) *Dispatcher {
	return &Dispatcher{
		ops:           ops,
		sessions:      sessions,
		publisher:     publisher,
		caseSensitive: caseSensitive,
	}
}

// Execute authenticates the caller, parses line and dispatches it. Every
// error returned is a *fault.Fault carrying userName and line.
func (d *Dispatcher) Execute(userName string, token session.Token, line string) (*Response, error) {
	s, err := d.sessions.Authenticate(userName, token)
	if err != nil {
		return nil, fault.Wrap(userName, line, err)
	}

	cmd, err := Parse(line, d.caseSensitive)
	if err != nil {
		return nil, fault.Wrap(s.UserName, line, err)
	}

	return d.Dispatch(s, cmd)
}

// Dispatch runs cmd for the session s. On success the other authenticated
// users are notified.
func (d *Dispatcher) Dispatch(s session.Session, cmd *Command) (*Response, error) {
	if err := cmd.CheckArity(); err != nil {
		return nil, fault.Wrap(s.UserName, cmd.Line, err)
	}

	cwd := s.CurrentDirectory
	message, err := d.run(s, cmd, &cwd)
	if err != nil {
		logger.Debug("Command %q from %s failed: %v", cmd.Line, s.UserName, err)
		return nil, fault.Wrap(s.UserName, cmd.Line, err)
	}

	if cwd != s.CurrentDirectory {
		if err := d.sessions.SetCurrentDirectory(s.UserName, cwd); err != nil {
			return nil, fault.Wrap(s.UserName, cmd.Line, err)
		}
	}

	d.notifyOthers(s.UserName, cmd.Line)

	return &Response{
		UserName:         s.UserName,
		CurrentDirectory: cwd,
		CommandLine:      cmd.Line,
		Message:          message,
		Code:             cmd.Code,
	}, nil
}

func (d *Dispatcher) run(s session.Session, cmd *Command, cwd *string) (string, error) {
	p := cmd.Params

	switch cmd.Code {
	case MakeDirectory:
		path, err := d.ops.MakeDirectory(*cwd, p[0])
		return fmt.Sprintf("Directory %s created", path), err

	case ChangeDirectory:
		path, err := d.ops.ChangeDirectory(*cwd, p[0])
		if err != nil {
			return "", err
		}
		*cwd = path
		return fmt.Sprintf("Current directory is %s", path), nil

	case RemoveDirectory:
		path, err := d.ops.RemoveDirectory(*cwd, p[0])
		return fmt.Sprintf("Directory %s removed", path), err

	case DeleteTree:
		path, err := d.ops.DeleteTree(*cwd, p[0])
		return fmt.Sprintf("Tree %s deleted", path), err

	case MakeFile:
		path, err := d.ops.MakeFile(*cwd, p[0])
		return fmt.Sprintf("File %s created", path), err

	case DeleteFile:
		path, err := d.ops.DeleteFile(*cwd, p[0])
		return fmt.Sprintf("File %s deleted", path), err

	case LockFile, UnlockFile:
		target, err := lockTarget(s.UserName, p)
		if err != nil {
			return "", err
		}
		if cmd.Code == LockFile {
			path, err := d.ops.LockFile(*cwd, s.UserName, target)
			return fmt.Sprintf("File %s locked by %s", path, s.UserName), err
		}
		path, err := d.ops.UnlockFile(*cwd, s.UserName, target)
		return fmt.Sprintf("File %s unlocked by %s", path, s.UserName), err

	case CopyTree:
		path, err := d.ops.Copy(*cwd, p[0], p[1])
		return fmt.Sprintf("%s copied to %s", p[0], path), err

	case MoveTree:
		path, err := d.ops.Move(*cwd, p[0], p[1])
		return fmt.Sprintf("%s moved to %s", p[0], path), err

	case PrintTree:
		printRoot := false
		if len(p) > 0 {
			if !strings.EqualFold(p[0], rootFlag) {
				return "", fault.WithPath(fault.ErrValidation, "unknown PRINT flag", p[0])
			}
			printRoot = true
		}
		return d.ops.PrintTree(printRoot), nil
	}

	return "", fault.WithPath(fault.ErrProtocol, "unrecognized command", cmd.Verb)
}

// lockTarget returns the path parameter of LOCK/UNLOCK. The two-parameter
// form "LOCK <user> <path>" is accepted when <user> is the caller.
func lockTarget(userName string, params []string) (string, error) {
	if len(params) == 1 {
		return params[0], nil
	}
	if !namespace.NamesEqual(params[0], userName) {
		return "", fault.WithPath(fault.ErrAuthFailure, "cannot act on behalf of another user", params[0])
	}
	return params[1], nil
}

func (d *Dispatcher) notifyOthers(sender, line string) {
	if d.publisher == nil {
		return
	}

	var recipients []string
	for _, user := range d.sessions.ActiveUsers() {
		if !namespace.NamesEqual(user, sender) {
			recipients = append(recipients, user)
		}
	}
	d.publisher.Publish(recipients, notify.Notification{UserName: sender, CommandLine: line})
}
