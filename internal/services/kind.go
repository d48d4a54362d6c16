package services

import (
	"encoding/json"

	"grimm.is/tornet/internal/host"
)

// Kind is the service manager variant detected on the host.
type Kind int

const (
	// KindNone means no supported service manager was found.
	KindNone Kind = iota
	// KindSystemd drives units with "systemctl <action> <unit>".
	KindSystemd
	// KindSysV drives init scripts with "service <unit> <action>".
	KindSysV
)

// systemdRuntimeDir exists only when systemd is PID 1.
const systemdRuntimeDir = "/run/systemd/system"

func (k Kind) String() string {
	switch k {
	case KindSystemd:
		return "systemctl"
	case KindSysV:
		return "service"
	default:
		return "none"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	if k == KindNone {
		return []byte("null"), nil
	}
	return json.Marshal(k.String())
}

// Command returns the control command for action on unit, or ok=false for
// KindNone.
func (k Kind) Command(action, unit string) (name string, args []string, ok bool) {
	switch k {
	case KindSystemd:
		return "systemctl", []string{action, unit}, true
	case KindSysV:
		return "service", []string{unit, action}, true
	default:
		return "", nil, false
	}
}

// Detect probes the host once for a supported service manager.
// systemd wins only when its runtime directory is present.
func Detect(env host.Env) Kind {
	if host.Has(env, "systemctl") && env.Exists(systemdRuntimeDir) {
		return KindSystemd
	}
	if host.Has(env, "service") {
		return KindSysV
	}
	return KindNone
}
