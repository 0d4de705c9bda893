package cli

import (
	"log/slog"

	"lanshare/internal/journal"
	"lanshare/internal/session"
)

// AppContext carries the dependencies the CLI commands operate on.
type AppContext struct {
	Manager *session.Manager
	Journal *journal.Journal
	Log     *slog.Logger

	// Interactive is set while the shell is driving the commands. In
	// that mode host/join return right away and the shell's event
	// printer streams the membership changes instead.
	Interactive bool
}

func NewAppContext(manager *session.Manager, jrnl *journal.Journal, log *slog.Logger) *AppContext {
	return &AppContext{
		Manager: manager,
		Journal: jrnl,
		Log:     log,
	}
}
