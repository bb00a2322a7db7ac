// Package cli implements syncctl, the command-line sync client.
//
// Operations are recorded into a local SQLite outbox first, so enqueue works
// without a connection. flush pushes the outbox to the server in order, sync
// additionally runs a server-side sync round, and watch does both on a timer
// while tracking whether the server is reachable.
//
// Output is a table on a terminal and JSON otherwise; --format overrides it.
package cli
