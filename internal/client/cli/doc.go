// Package cli provides the interactive GophLedger command-line client.
//
// It wires configuration, the local SQLite database, the configured record
// store (local or a remote gRPC server) and the ledger services, then runs an
// interactive REPL. In remote mode a background watcher pings the server and
// reports online/offline status in the prompt.
//
// Key features:
//   - Login with an owner id that derives the field encryption key
//   - Add transactions, optionally split into monthly installments
//   - List and watch entries by date or due date
//   - Edit, delete and toggle entries, alone or for a whole installment group
//   - Cancel future installments of a group
//   - Migrate records sealed with a legacy device key
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
