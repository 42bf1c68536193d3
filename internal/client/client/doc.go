// Package client contains the CLI side of the Bookly transport.
//
// # Overview
//
// The package provides:
//  1. The Client contract: the remote document store (docstore.Store),
//     upload tickets (blob.Ticketer) and the account calls.
//  2. A gRPC implementation (see GRPCClient) that injects the access token
//     through interceptors, refreshes an expired token once and retries,
//     turns server streams into snapshot subscriptions and maps gRPC status
//     codes to the errors in package common.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite file with embedded goose migrations.
//
// # Error Handling
//
// InvalidArgument becomes a validation error carrying the server's message;
// NotFound, AlreadyExists and Unauthenticated map to the sentinels in package
// common; an unreachable server is ErrUnavailable.
package client
