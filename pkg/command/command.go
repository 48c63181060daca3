// Package command parses console command lines and dispatches them to the
// namespace engine on behalf of an authenticated session.
package command

import (
	"strconv"
	"strings"

	"github.com/marmos91/simfs/pkg/fault"
)

// Code identifies a console verb.
type Code int

const (
	// CodeUnknown is never returned by Parse on success.
	CodeUnknown Code = iota
	MakeDirectory
	ChangeDirectory
	RemoveDirectory
	DeleteTree
	MakeFile
	DeleteFile
	LockFile
	UnlockFile
	CopyTree
	MoveTree
	PrintTree
)

type verb struct {
	name      string
	short     string
	minParams int
}

var verbs = map[Code]verb{
	MakeDirectory:   {"MakeDirectory", "MD", 1},
	ChangeDirectory: {"ChangeDirectory", "CD", 1},
	RemoveDirectory: {"RemoveDirectory", "RD", 1},
	DeleteTree:      {"DeleteTree", "DELTREE", 1},
	MakeFile:        {"MakeFile", "MF", 1},
	DeleteFile:      {"DeleteFile", "DEL", 1},
	LockFile:        {"LockFile", "LOCK", 1},
	UnlockFile:      {"UnlockFile", "UNLOCK", 1},
	CopyTree:        {"CopyTree", "COPY", 2},
	MoveTree:        {"MoveTree", "MOVE", 2},
	PrintTree:       {"PrintTree", "PRINT", 0},
}

// Codes returns all verbs in declaration order.
func Codes() []Code {
	codes := make([]Code, 0, len(verbs))
	for c := MakeDirectory; c <= PrintTree; c++ {
		codes = append(codes, c)
	}
	return codes
}

// String returns the long verb name.
func (c Code) String() string {
	if v, ok := verbs[c]; ok {
		return v.name
	}
	return "Unknown"
}

// Short returns the short verb name, e.g. "MD".
func (c Code) Short() string {
	if v, ok := verbs[c]; ok {
		return v.short
	}
	return ""
}

// MinParams returns the minimum number of parameters the verb requires.
func (c Code) MinParams() int {
	return verbs[c].minParams
}

// Command is a parsed command line.
type Command struct {
	Code   Code
	Verb   string
	Params []string
	Line   string
}

// ParseCode matches token against the long and short verb names. Matching
// ignores case unless caseSensitive is set. Tokens that parse as integers
// never match.
func ParseCode(token string, caseSensitive bool) (Code, bool) {
	if isInteger(token) {
		return CodeUnknown, false
	}
	for code, v := range verbs {
		if caseSensitive {
			if token == v.name || token == v.short {
				return code, true
			}
			continue
		}
		if strings.EqualFold(token, v.name) || strings.EqualFold(token, v.short) {
			return code, true
		}
	}
	return CodeUnknown, false
}

func isInteger(token string) bool {
	if _, err := strconv.ParseInt(token, 10, 64); err == nil {
		return true
	}
	if _, err := strconv.ParseUint(strings.TrimPrefix(token, "+"), 10, 64); err == nil {
		return true
	}
	return false
}

// Parse splits line on whitespace. The first token is the verb, the rest are
// parameters.
func Parse(line string, caseSensitive bool) (*Command, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fault.New(fault.ErrValidation, "command line cannot be empty")
	}

	code, ok := ParseCode(tokens[0], caseSensitive)
	if !ok {
		return nil, fault.WithPath(fault.ErrProtocol, "unrecognized command", tokens[0])
	}

	return &Command{
		Code:   code,
		Verb:   tokens[0],
		Params: tokens[1:],
		Line:   strings.TrimSpace(line),
	}, nil
}

// CheckArity fails with a protocol error if cmd has fewer parameters than
// its verb requires.
func (cmd *Command) CheckArity() error {
	if want := cmd.Code.MinParams(); len(cmd.Params) < want {
		return fault.Newf(fault.ErrProtocol, "%s requires %d parameter(s), got %d",
			cmd.Code.Short(), want, len(cmd.Params))
	}
	return nil
}
