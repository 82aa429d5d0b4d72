// Package sqlite is the durable query log: one append-only table of
// QueryRecords in a local SQLite file.
//
// # Database Configuration
//
//   - WAL mode: history reads do not block the interception path
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - a single open connection (SetMaxOpenConns(1))
//
// SetMaxOpenConns(1) alone already serializes writes, since every statement
// waits for the one connection. Store keeps its own mutex on Insert anyway,
// so the single-writer rule holds even if the pool is later widened for
// concurrent reads.
//
// Timestamps are stored as fixed-width UTC text (domain.TimestampLayout), so
// lexical comparison in predicates matches time order.
package sqlite
