package host

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ProcessTable answers questions about running processes.
type ProcessTable struct {
	Env    Env
	Runner CommandRunner
	// ProcRoot is the procfs mount, "/proc" when empty.
	ProcRoot string
	// Self is excluded from sweeps. Defaults to os.Getpid().
	Self int

	kill func(pid int, sig syscall.Signal) error
}

// NewProcessTable returns a ProcessTable for the real host.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{Env: System{}, Runner: DefaultCommandRunner}
}

func (p *ProcessTable) procRoot() string {
	if p.ProcRoot == "" {
		return "/proc"
	}
	return p.ProcRoot
}

// Running reports whether a process named exactly name exists. It asks
// pgrep when available and scans procfs otherwise.
func (p *ProcessTable) Running(name string) bool {
	if p.Env != nil && p.Runner != nil && Has(p.Env, "pgrep") {
		return p.Runner.Run("pgrep", "-x", name) == nil
	}
	for _, proc := range p.scan() {
		if proc.comm == name {
			return true
		}
	}
	return false
}

// Sweep sends SIGTERM to every process whose name or executable basename
// equals one of the patterns, skipping this process. Failures are ignored. It returns the
// number of signals delivered.
func (p *ProcessTable) Sweep(patterns ...string) int {
	self := p.Self
	if self == 0 {
		self = os.Getpid()
	}
	kill := p.kill
	if kill == nil {
		kill = unix.Kill
	}

	sent := 0
	for _, proc := range p.scan() {
		if proc.pid == self {
			continue
		}
		for _, pat := range patterns {
			if proc.comm == pat || proc.exe == pat {
				if kill(proc.pid, unix.SIGTERM) == nil {
					sent++
				}
				break
			}
		}
	}
	return sent
}

type procEntry struct {
	pid  int
	comm string
	// exe is the basename of argv[0].
	exe string
}

func (p *ProcessTable) scan() []procEntry {
	root := p.procRoot()
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var out []procEntry
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(root, e.Name(), "comm"))
		if err != nil {
			continue
		}
		entry := procEntry{pid: pid, comm: strings.TrimSpace(string(comm))}
		if cmdline, err := os.ReadFile(filepath.Join(root, e.Name(), "cmdline")); err == nil {
			argv0, _, _ := strings.Cut(string(cmdline), "\x00")
			if argv0 != "" {
				entry.exe = filepath.Base(argv0)
			}
		}
		out = append(out, entry)
	}
	return out
}
