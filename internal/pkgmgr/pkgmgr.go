// Package pkgmgr detects the host package manager and installs packages.
package pkgmgr

import (
	"fmt"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/host"
	"grimm.is/tornet/internal/logging"
)

// Kind is a supported package manager.
type Kind struct {
	Name    string
	Binary  string
	refresh []string
	install []string
}

// None is returned by Detect when no supported package manager exists.
var None = Kind{}

// Known package managers in detection order.
var (
	Apt    = Kind{Name: "apt", Binary: "apt-get", refresh: []string{"update"}, install: []string{"install", "-y"}}
	Dnf    = Kind{Name: "dnf", Binary: "dnf", install: []string{"install", "-y"}}
	Yum    = Kind{Name: "yum", Binary: "yum", install: []string{"install", "-y"}}
	Pacman = Kind{Name: "pacman", Binary: "pacman", install: []string{"-Sy", "--noconfirm"}}
	Apk    = Kind{Name: "apk", Binary: "apk", install: []string{"add"}}
	Zypper = Kind{Name: "zypper", Binary: "zypper", install: []string{"--non-interactive", "install"}}

	All = []Kind{Apt, Dnf, Yum, Pacman, Apk, Zypper}
)

func (k Kind) String() string {
	if k.Name == "" {
		return "none"
	}
	return k.Name
}

// IsNone reports whether k is the "none detected" variant.
func (k Kind) IsNone() bool { return k.Name == "" }

// Commands returns the command lines that install pkg, in order.
func (k Kind) Commands(pkg string) [][]string {
	if k.IsNone() {
		return nil
	}
	var cmds [][]string
	if len(k.refresh) > 0 {
		cmds = append(cmds, append([]string{k.Binary}, k.refresh...))
	}
	install := append([]string{k.Binary}, k.install...)
	cmds = append(cmds, append(install, pkg))
	return cmds
}

// Detect returns the first supported package manager found in PATH.
func Detect(env host.Env) Kind {
	for _, k := range All {
		if host.Has(env, k.Binary) {
			return k
		}
	}
	return None
}

// Installer installs packages with elevated privilege.
type Installer struct {
	Kind     Kind
	Env      host.Env
	Elevator *host.Elevator
	Logger   *logging.Logger
}

// NewInstaller detects the package manager on env.
func NewInstaller(env host.Env, runner host.CommandRunner, logger *logging.Logger) *Installer {
	if logger == nil {
		logger = logging.WithComponent("pkgmgr")
	}
	return &Installer{
		Kind:     Detect(env),
		Env:      env,
		Elevator: &host.Elevator{Env: env, Runner: runner},
		Logger:   logger,
	}
}

// Install installs pkg. A missing package manager yields KindNoPackageManager.
func (i *Installer) Install(pkg string) error {
	if i.Kind.IsNone() {
		return apperr.Errorf(apperr.KindNoPackageManager,
			"no supported package manager found; install %s manually", pkg)
	}
	for _, argv := range i.Kind.Commands(pkg) {
		i.Logger.Info("running package manager", "cmd", argv)
		if err := i.Elevator.Run(argv[0], argv[1:]...); err != nil {
			return fmt.Errorf("install %s with %s: %w", pkg, i.Kind, err)
		}
	}
	return nil
}

// Ensure installs binary's package unless binary is already in PATH.
func (i *Installer) Ensure(binary, pkg string) error {
	if host.Has(i.Env, binary) {
		return nil
	}
	i.Logger.Info("package not found, installing", "package", pkg)
	return i.Install(pkg)
}
