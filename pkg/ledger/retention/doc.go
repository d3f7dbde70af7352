// Package retention prunes old ledger transactions on a cron schedule.
//
// Account balances are never touched: only the transaction audit log is
// trimmed, keeping the database bounded for long-running deployments.
package retention
