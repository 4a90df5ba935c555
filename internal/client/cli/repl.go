package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Add(ctx context.Context) error
	List(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Cancel(ctx context.Context, args []string) error
	Toggle(ctx context.Context, args []string) error
	Watch(ctx context.Context, args []string) error
	Migrate(ctx context.Context) error
	Fingerprint(ctx context.Context) error
	LegacyKey(ctx context.Context) error
	Status(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: login, status, exit"
	helpLoggedIn  = `Available commands:
  add                              add a transaction (optionally in installments)
  list [due] [group=<id>] [from] [to]
  watch [due] [group=<id>] [from] [to]
  edit <id> [group]                edit an entry, or every entry of its group
  delete <id> [group]
  cancel <group id> <YYYY-MM-DD>   delete installments due after the date
  toggle <id>                      flip paid/pending
  migrate                          re-encrypt records sealed with the legacy key
  legacykey                        import the legacy device key
  fingerprint, status, logout, exit`
)

// runREPL reads commands line by line from reader and dispatches them to a.
// The loop exits on EOF or when the user types "exit" or "quit".
//
// Every command except help, login, status and exit requires a login. Command
// errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}

		fmt.Fprintf(w, "gl %s> ", statusFn())
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, helpLoggedIn)
			} else {
				fmt.Fprintln(w, helpLoggedOut)
			}
			continue
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		case "login":
			report(w, a.Login(ctx))
			continue
		case "status":
			report(w, a.Status(ctx))
			continue
		}

		if !a.isLoggedIn() {
			fmt.Fprintln(w, "Please login first")
			continue
		}

		switch cmd {
		case "add":
			err = a.Add(ctx)
		case "l", "list":
			err = a.List(ctx, args)
		case "watch":
			err = a.Watch(ctx, args)
		case "edit":
			err = a.Edit(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "cancel":
			err = a.Cancel(ctx, args)
		case "toggle":
			err = a.Toggle(ctx, args)
		case "migrate":
			err = a.Migrate(ctx)
		case "legacykey":
			err = a.LegacyKey(ctx)
		case "fingerprint":
			err = a.Fingerprint(ctx)
		case "logout":
			err = a.Logout(ctx)
		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
			err = nil
		}
		report(w, err)
	}
}

func report(w io.Writer, err error) {
	if err != nil {
		fmt.Fprintln(w, "Error:", err)
	}
}
