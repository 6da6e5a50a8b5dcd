// Package storage is the column store behind the ingestion pipeline. It
// exposes a narrow gateway (put-rows, get-row, scan) over pluggable
// key-value backends, with batched writes, bounded retries, value
// compression and a read-through cache. Rowkeys are composite strings
// built for contiguous range scans.
package storage

import "context"

// Table names one logical column family.
type Table string

const (
	TableLedgers          Table = "ledgers"
	TableTransactions     Table = "transactions"
	TableExchanges        Table = "exchanges"
	TablePayments         Table = "payments"
	TableBalanceChanges   Table = "balance_changes"
	TableAccountsCreated  Table = "accounts_created"
	TableMemos            Table = "memos"
	TableAffectedAccounts Table = "affected_accounts"
	TableControl          Table = "control"
)

// Tables lists every table the gateway serves.
var Tables = []Table{
	TableLedgers,
	TableTransactions,
	TableExchanges,
	TablePayments,
	TableBalanceChanges,
	TableAccountsCreated,
	TableMemos,
	TableAffectedAccounts,
	TableControl,
}

// Row is one stored record: a composite rowkey plus a column map. Writes
// are upserts keyed by Row.Key, so replaying the same row is idempotent.
type Row struct {
	Key     string
	Columns map[string]any
}

// ScanOptions bounds a range scan. Start is inclusive, Stop exclusive;
// empty bounds mean the edge of the table. Limit of zero means unbounded.
type ScanOptions struct {
	Start      string
	Stop       string
	Limit      int
	Descending bool
}

// Gateway is the storage interface the rest of the system writes through.
type Gateway interface {
	// PutRows upserts rows into table, chunked to the configured batch
	// size. Each chunk is retried with backoff before the write fails.
	PutRows(ctx context.Context, table Table, rows []Row) error

	// GetRow fetches one row by key, or ErrRowNotFound.
	GetRow(ctx context.Context, table Table, key string) (Row, error)

	// Scan returns rows in lexicographic rowkey order (reversed when
	// Descending is set).
	Scan(ctx context.Context, table Table, opts ScanOptions) ([]Row, error)

	// Stats returns cumulative gateway counters.
	Stats() Statistics

	// Close flushes and releases the backend.
	Close() error
}

// Statistics holds cumulative gateway counters.
type Statistics struct {
	Reads       uint64
	Writes      uint64
	CacheHits   uint64
	CacheMisses uint64
	Retries     uint64
	BackendName string
}
