package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"grimm.is/tornet/internal/services"
)

func finish(check Check, start time.Time) Check {
	check.LastChecked = start
	check.Duration = time.Since(start)
	return check
}

// CheckService reports the daemon behind svc. Running without a usable
// service manager is degraded since rotations would fail.
func CheckService(svc services.Service) CheckFunc {
	return func(ctx context.Context) Check {
		start := time.Now()
		st := svc.Status()
		switch {
		case !st.Running:
			return finish(Check{Status: StatusUnhealthy, Message: st.Name + " not running"}, start)
		case st.Error != "":
			return finish(Check{Status: StatusDegraded, Message: st.Error}, start)
		}
		return finish(Check{Status: StatusHealthy, Message: st.Name + " running"}, start)
	}
}

// CheckTCP dials addr. A closed port is unhealthy.
func CheckTCP(addr string, timeout time.Duration) CheckFunc {
	return func(ctx context.Context) Check {
		start := time.Now()
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return finish(Check{Status: StatusUnhealthy, Message: fmt.Sprintf("dial %s: %v", addr, err)}, start)
		}
		conn.Close()
		return finish(Check{Status: StatusHealthy, Message: addr + " accepting connections"}, start)
	}
}

// CheckWritable verifies a file can be created in dir. Failure is degraded:
// rotation still works, but region pins and logs cannot be written.
func CheckWritable(dir string) CheckFunc {
	return func(ctx context.Context) Check {
		start := time.Now()
		f, err := os.CreateTemp(dir, ".health_check")
		if err != nil {
			return finish(Check{Status: StatusDegraded, Message: fmt.Sprintf("state dir not writable: %v", err)}, start)
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
		return finish(Check{Status: StatusHealthy, Message: filepath.Clean(dir) + " writable"}, start)
	}
}
