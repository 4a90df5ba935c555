// Package client contains client-side building blocks for GophLedger.
//
// # Overview
//
// The package provides:
//  1. GRPCClient, a store.Store backed by the gophledger.LedgerStore gRPC
//     service. It maps gRPC status codes back to the sentinel errors of
//     package common and turns the Watch stream into a snapshot channel.
//  2. Local persistence bootstrap utilities (InitDatabase, RunMigrations) for
//     the CLI, wiring an SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Lookups of missing records fail with common.ErrorNotFound and rejected
// batches with common.ErrorInvalidArgument. Transport failures surface as
// ErrUnavailable. Match them with errors.Is.
//
// All operations accept context.Context and honor cancellation/timeouts.
package client
