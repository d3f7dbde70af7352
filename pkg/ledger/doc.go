// Package ledger implements credit accounting for inference requests.
//
// Every account holds a balance in micro-dollars (1 USD = 1,000,000 micros)
// together with a version counter. All balance changes go through a
// compare-and-swap on that version, so concurrent debits against the same
// account never double-spend: one writer wins, the others observe a version
// conflict and retry against the fresh balance.
//
// Each applied change also appends an immutable Transaction row carrying the
// signed delta, a reason, and the originating request id, giving a full
// audit trail per account.
//
// Two storage backends are provided: an in-memory store for tests and
// ephemeral deployments, and a SQLite store (WAL mode) for single-instance
// durability. Both apply the balance update and the transaction append
// atomically.
package ledger
