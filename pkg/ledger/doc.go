// Package ledger holds every user's spendable balance in memory.
//
// The ledger is the sole authority for admission decisions. The durable
// store only learns about spending through deltas, which the flusher drains
// periodically and applies in one batch.
//
// # Accounting
//
// Each entry carries three amounts:
//
//	balance    last known balance, including settled charges
//	reserved   sum of outstanding holds
//	unflushed  charges not yet written to the store
//
// A request reserves a ceiling before it is forwarded, then either settles
// with the actual cost or releases the hold. Every token is consumed exactly
// once. Available balance is balance - reserved and is what Reserve checks,
// so concurrent requests of the same user cannot jointly overspend.
//
// Settling may charge more than the ceiling and may leave the balance
// negative; later reservations then fail until the user is credited.
//
// # Concurrency
//
// Entries are spread over shards. A shard lock is held only to find or
// insert an entry; all arithmetic happens under the entry's own mutex. No
// operation holds two entry locks at once.
package ledger
