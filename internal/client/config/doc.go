// Package config loads runtime configuration for the GophLedger CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-m string   store mode: local or remote
//	-a string   address:port of the store server gRPC endpoint
//	-d string   SQLite database file
//	-i int      online status check interval (seconds)
//	-w int      decode concurrency
//	-l string   log level
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "3s" or integer nanoseconds:
//
//	{
//	  "mode": "remote",
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_dsn": "gophledger.db",
//	  "online_check_interval": "3s",
//	  "decode_concurrency": 8,
//	  "log_level": "warn"
//	}
//
// Note: This package does not read environment variables directly; use the
// JSON file or flags to configure values.
package config
