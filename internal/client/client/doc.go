// Package client contains the syncctl transport and local storage bootstrap.
//
// # Overview
//
//  1. Client is the contract syncctl uses to talk to the sync server.
//  2. GRPCClient implements it over offsync.v1.SyncService. An interceptor
//     attaches the device access token and, when the server reports the
//     token expired, registers the device again and retries once.
//  3. InitDatabase and RunMigrations open the SQLite outbox database and apply
//     the embedded goose migrations.
//
// # Error Handling
//
// gRPC status codes are mapped to sentinel errors matched with errors.Is:
// ErrUnavailable (retry later), ErrUnauthorized, ErrRejected (permanent) and
// ErrNotRegistered.
package client
