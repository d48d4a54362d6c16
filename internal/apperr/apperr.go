// Package apperr defines the fatal error kinds that terminate tornet and the
// process exit code each one maps to.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal error.
type Kind int

const (
	KindGeneric Kind = iota
	KindInsufficientPrivilege
	KindNoServiceManager
	KindNoPackageManager
	KindInvalidInterval
	KindNoInternet
	KindTorNotInstalled
	KindMissingLibrary
	KindInvalidDuration
	KindMissingFirewallTool
	KindRootRequired
	KindLogUnreadable
	KindInvalidRegion
)

var kindInfo = map[Kind]struct {
	name string
	code int
}{
	KindGeneric:               {"error", 1},
	KindInsufficientPrivilege: {"insufficient privilege", 2},
	KindNoServiceManager:      {"no service manager", 3},
	KindNoPackageManager:      {"no package manager", 4},
	KindInvalidInterval:       {"invalid interval", 8},
	KindNoInternet:            {"no internet connection", 9},
	KindTorNotInstalled:       {"tor not installed", 10},
	KindMissingLibrary:        {"missing library", 11},
	KindInvalidDuration:       {"invalid duration", 12},
	KindMissingFirewallTool:   {"missing firewall tool", 13},
	KindRootRequired:          {"root required", 14},
	KindLogUnreadable:         {"log unreadable", 15},
	KindInvalidRegion:         {"invalid region", 16},
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ExitCode returns the stable process exit code for k.
func (k Kind) ExitCode() int {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return 1
}

// Error is a fatal error carrying its Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an *Error of kind k.
func New(k Kind, op string, err error) *Error {
	return &Error{Kind: k, Op: op, Err: err}
}

// Errorf returns an *Error of kind k with a formatted message.
func Errorf(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindGeneric.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// ExitCode maps err to a process exit code. nil maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return KindOf(err).ExitCode()
}
