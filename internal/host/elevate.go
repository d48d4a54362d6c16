package host

import (
	"grimm.is/tornet/internal/apperr"
)

// Elevator runs commands with root privilege, prefixing sudo when the
// current process is not already root.
type Elevator struct {
	Env    Env
	Runner CommandRunner
}

// NewElevator returns an Elevator for the real host.
func NewElevator() *Elevator {
	return &Elevator{Env: System{}, Runner: DefaultCommandRunner}
}

// Wrap returns the command line to execute for name and args.
// Without root and without sudo it fails with KindInsufficientPrivilege.
func (e *Elevator) Wrap(name string, args ...string) (string, []string, error) {
	if IsRoot(e.Env) {
		return name, args, nil
	}
	if !Has(e.Env, "sudo") {
		return "", nil, apperr.Errorf(apperr.KindInsufficientPrivilege,
			"root privileges required but sudo not available; run as root or install sudo")
	}
	return "sudo", append([]string{name}, args...), nil
}

// Run executes the elevated command.
func (e *Elevator) Run(name string, args ...string) error {
	cmd, argv, err := e.Wrap(name, args...)
	if err != nil {
		return err
	}
	return e.Runner.Run(cmd, argv...)
}
