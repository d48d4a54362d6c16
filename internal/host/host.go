// Package host wraps the parts of the operating system tornet depends on:
// binary lookup, privilege, command execution and the process table.
package host

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Env abstracts host probes so callers can be tested against a stub host.
type Env interface {
	LookPath(name string) (string, error)
	Exists(path string) bool
	Geteuid() int
}

// System is the real host.
type System struct{}

func (System) LookPath(name string) (string, error) { return exec.LookPath(name) }

func (System) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (System) Geteuid() int { return unix.Geteuid() }

// Has reports whether name resolves in PATH.
func Has(env Env, name string) bool {
	_, err := env.LookPath(name)
	return err == nil
}

// IsRoot reports whether the effective UID is 0.
func IsRoot(env Env) bool {
	return env.Geteuid() == 0
}

// StubEnv is a fixed host description for tests and dry runs.
type StubEnv struct {
	Binaries map[string]string // name -> resolved path
	Paths    map[string]bool
	EUID     int
}

func (s *StubEnv) LookPath(name string) (string, error) {
	if p, ok := s.Binaries[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (s *StubEnv) Exists(path string) bool { return s.Paths[path] }

func (s *StubEnv) Geteuid() int { return s.EUID }
