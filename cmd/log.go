package cmd

import (
	"context"
	"errors"

	"grimm.is/tornet/internal/apperr"
	"grimm.is/tornet/internal/logging"
)

// RunLog prints the log file, or follows it until ctx is cancelled.
func (a *App) RunLog(ctx context.Context, follow bool) error {
	if err := logging.EnsureLogFile(a.Paths.LogFile); err != nil {
		return apperr.New(apperr.KindLogUnreadable, "log", err)
	}

	if follow {
		if err := logging.Follow(ctx, a.Paths.LogFile, a.Out, a.Clock); err != nil {
			return apperr.New(apperr.KindLogUnreadable, "log", err)
		}
		return nil
	}

	err := logging.Dump(a.Paths.LogFile, a.Out)
	switch {
	case errors.Is(err, logging.ErrLogEmpty):
		a.print(a.Theme.Success("Log file is empty"))
		return nil
	case err != nil:
		return apperr.New(apperr.KindLogUnreadable, "log", err)
	}
	return nil
}
