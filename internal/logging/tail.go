package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"grimm.is/tornet/internal/clock"
)

// TailPollInterval is how often Follow checks the file for new content.
const TailPollInterval = 100 * time.Millisecond

// ErrLogEmpty is returned by Dump when the log file has no content.
var ErrLogEmpty = errors.New("log file is empty")

// Dump copies the whole log file at path to w.
func Dump(path string, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read log file: %w", err)
	}
	if len(data) == 0 {
		return ErrLogEmpty
	}
	_, err = w.Write(data)
	return err
}

// Follow prints lines appended to path after the call starts, polling on
// TailPollInterval until ctx is done. It returns nil on cancellation.
func Follow(ctx context.Context, path string, w io.Writer, clk clock.Clock) error {
	if clk == nil {
		clk = &clock.RealClock{}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("could not seek log file: %w", err)
	}

	reader := bufio.NewReader(f)
	var partial strings.Builder
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			partial.WriteString(line)
		}
		if err == nil {
			fmt.Fprintln(w, strings.TrimRight(partial.String(), "\r\n"))
			partial.Reset()
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("could not read log file: %w", err)
		}
		if serr := clk.Sleep(ctx, TailPollInterval); serr != nil {
			return nil
		}
	}
}
