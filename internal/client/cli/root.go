package cli

import (
	"context"
	"fmt"
)

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return string(a.Mode())
	}
	return fmt.Sprintf("%s*", a.Mode())
}

// Root prints the welcome banner, starts the connectivity watcher and blocks
// in the REPL until the user exits or ctx is cancelled.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to GophLedger. Type 'help' for commands.")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}
