// Package source connects to a rippled websocket endpoint and exposes the
// two operations the pipeline needs: a push stream of closed-ledger
// notifications and on-demand ledger fetches with fully expanded
// transactions. Transient connection failures are retried with capped
// exponential backoff; a fetched ledger that is not yet marked closed is
// re-fetched after a short fixed delay instead of surfacing an error.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LeJamon/xrplhist/internal/ledger"
	"github.com/LeJamon/xrplhist/internal/types"
)

var (
	// ErrNotFound is returned when the server does not have the ledger.
	ErrNotFound = errors.New("ledger not found")

	// ErrClosed is returned for operations on a closed client.
	ErrClosed = errors.New("source closed")
)

// ClosedLedger is one closed-ledger notification from the ledger stream.
type ClosedLedger struct {
	Index   uint32
	Hash    types.Hash256
	Time    uint32 // ripple epoch seconds
	TxCount int
}

// LedgerID identifies a ledger to fetch: by index, by hash, or the
// symbolic most-recently-validated ledger.
type LedgerID struct {
	index     uint32
	hash      string
	validated bool
}

// ByIndex identifies a ledger by its sequence number.
func ByIndex(index uint32) LedgerID {
	return LedgerID{index: index}
}

// ByHash identifies a ledger by its hash.
func ByHash(hash types.Hash256) LedgerID {
	return LedgerID{hash: hash.String()}
}

// Validated identifies the most recently validated ledger.
func Validated() LedgerID {
	return LedgerID{validated: true}
}

func (id LedgerID) String() string {
	switch {
	case id.validated:
		return "validated"
	case id.hash != "":
		return id.hash
	default:
		return fmt.Sprintf("%d", id.index)
	}
}

// FetchOptions controls how much of the ledger is returned.
type FetchOptions struct {
	// IncludeTransactions asks for the ledger's transaction set.
	IncludeTransactions bool

	// Expand returns transactions as full objects with metadata instead
	// of bare hashes.
	Expand bool
}

// Source is the ledger feed consumed by the pipeline and validator.
type Source interface {
	// SubscribeClosedLedgers streams a notification for every ledger the
	// network closes, until the context is done. The channel is closed on
	// unsubscribe or client shutdown.
	SubscribeClosedLedgers(ctx context.Context) (<-chan ClosedLedger, error)

	// FetchLedger retrieves one ledger, or ErrNotFound.
	FetchLedger(ctx context.Context, id LedgerID, opts FetchOptions) (*ledger.Ledger, error)

	// Close tears down the connection and all subscriptions.
	Close() error
}

// Config holds the websocket source configuration.
type Config struct {
	// URL is the rippled websocket endpoint, e.g. wss://s1.ripple.com.
	URL string `json:"url" mapstructure:"url"`

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration `json:"handshake_timeout" mapstructure:"handshake_timeout"`

	// RequestTimeout bounds one request/response round trip.
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout"`

	// InitialBackoff and MaxBackoff bound the reconnect backoff; the delay
	// doubles per failed attempt up to the cap.
	InitialBackoff time.Duration `json:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff" mapstructure:"max_backoff"`

	// NotClosedRetry is the fixed delay before re-fetching a ledger the
	// server returned without the closed flag.
	NotClosedRetry time.Duration `json:"not_closed_retry" mapstructure:"not_closed_retry"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:              "wss://s2.ripple.com:443",
		HandshakeTimeout: 15 * time.Second,
		RequestTimeout:   30 * time.Second,
		InitialBackoff:   time.Second,
		MaxBackoff:       30 * time.Second,
		NotClosedRetry:   500 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("source url must be specified")
	}
	return nil
}
