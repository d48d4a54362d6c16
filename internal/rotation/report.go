package rotation

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/text/message"

	"grimm.is/tornet/internal/clock"
)

// ErrNoAddress is reported when a cycle could not observe an address.
var ErrNoAddress = errors.New("could not determine IP address")

// onceFailure is the error text of a failed single change on the wire.
const onceFailure = "Failed to change IP"

// Event is the outcome of one rotation cycle.
type Event struct {
	Time  time.Time
	Mode  Mode
	Cycle int
	IP    string
	Err   string
}

// Reporter publishes cycle outcomes.
type Reporter interface {
	Report(ev Event) error
}

// jsonEvent is the wire form: action only for single changes, count only
// for counted runs, error in place of ip on failure.
type jsonEvent struct {
	Action    string  `json:"action,omitempty"`
	Timestamp float64 `json:"timestamp"`
	IP        string  `json:"ip,omitempty"`
	Error     string  `json:"error,omitempty"`
	Count     int     `json:"count,omitempty"`
}

// JSONReporter writes one JSON object per line.
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONReporter returns a reporter writing to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(w)}
}

func (r *JSONReporter) Report(ev Event) error {
	out := jsonEvent{Timestamp: clock.Unix(ev.Time), IP: ev.IP, Error: ev.Err}
	switch ev.Mode {
	case Once:
		out.Action = "ip_change"
		if ev.Err != "" {
			out.Error = onceFailure
		}
	case Counted:
		out.Count = ev.Cycle
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(out)
}

// TextReporter writes human-readable lines.
type TextReporter struct {
	W io.Writer
	P *message.Printer
}

func (r *TextReporter) Report(ev Event) error {
	var err error
	switch {
	case ev.Err != "" && ev.Mode == Once:
		_, err = r.P.Fprintf(r.W, "[!] IP change failed: %s\n", ev.Err)
	case ev.Err != "":
		_, err = r.P.Fprintf(r.W, "[!] Rotation %d: %s\n", ev.Cycle, ev.Err)
	case ev.Mode == Once:
		_, err = r.P.Fprintf(r.W, "[+] IP changed to %s\n", ev.IP)
	default:
		_, err = r.P.Fprintf(r.W, "[+] Rotation %d: IP changed to %s\n", ev.Cycle, ev.IP)
	}
	return err
}
