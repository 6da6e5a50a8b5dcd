// Package pipeline drives ledgers from the source to durable storage:
// Received -> Prepared -> Decomposed -> Persisting -> Persisted, or Failed
// after the retry budget. Transactions within a ledger are decomposed and
// persisted concurrently; completion bookkeeping is per ledger, and a
// ledger is Persisted only once every transaction write is acknowledged
// and its header row is durable.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/xrplhist/internal/ledger"
	"github.com/LeJamon/xrplhist/internal/metrics"
	"github.com/LeJamon/xrplhist/internal/parser"
	"github.com/LeJamon/xrplhist/internal/source"
	"github.com/LeJamon/xrplhist/internal/storage"
)

// ErrLedgerFailed reports a ledger abandoned after its retry budget.
var ErrLedgerFailed = errors.New("ledger failed")

// Config holds the pipeline configuration.
type Config struct {
	// Workers bounds concurrent transaction processing.
	Workers int `json:"workers" mapstructure:"workers"`

	// MaxAttempts bounds persistence attempts per transaction before the
	// whole ledger is marked Failed.
	MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts"`

	// RetryBackoff is the delay between per-transaction attempts.
	RetryBackoff time.Duration `json:"retry_backoff" mapstructure:"retry_backoff"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:      4,
		MaxAttempts:  3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// TxStats is the per-transaction summary emitted on the stats stream.
type TxStats struct {
	Type        string
	Result      string
	LedgerIndex uint32
	EventCount  int
}

// Pipeline turns closed ledgers into stored rows and emitted events.
type Pipeline struct {
	cfg     Config
	src     source.Source
	gw      storage.Gateway
	emitter Emitter
	met     *metrics.Metrics
	log     *zap.Logger
	track   *tracker
}

// New wires a pipeline. A nil emitter discards events; nil metrics are
// replaced with a private registry.
func New(cfg Config, src source.Source, gw storage.Gateway, emitter Emitter, met *metrics.Metrics, log *zap.Logger) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if met == nil {
		met = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		cfg:     cfg,
		src:     src,
		gw:      gw,
		emitter: emitter,
		met:     met,
		log:     log.Named("pipeline"),
		track:   newTracker(),
	}
}

// Run subscribes to the closed-ledger stream and ingests each ledger as it
// closes, until the context is done. A failed ledger is reported and the
// stream continues; it is never silently dropped.
func (p *Pipeline) Run(ctx context.Context) error {
	notes, err := p.src.SubscribeClosedLedgers(ctx)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for note := range notes {
		if err := p.IngestLedger(ctx, note.Index); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.log.Error("ledger ingestion failed",
				zap.Uint32("ledger_index", note.Index),
				zap.Error(err))
		}
	}
	return ctx.Err()
}

// IngestLedger fetches one ledger with expanded transactions and runs it
// through the pipeline.
func (p *Pipeline) IngestLedger(ctx context.Context, index uint32) error {
	l, err := p.src.FetchLedger(ctx, source.ByIndex(index), source.FetchOptions{
		IncludeTransactions: true,
		Expand:              true,
	})
	if err != nil {
		return fmt.Errorf("fetch ledger %d: %w", index, err)
	}
	return p.ProcessLedger(ctx, l)
}

// ReimportLedger re-runs one ledger through the pipeline. Writes are
// idempotent, so replacing a corrupt or missing record is safe.
func (p *Pipeline) ReimportLedger(ctx context.Context, index uint32) error {
	p.log.Info("reimporting ledger", zap.Uint32("ledger_index", index))
	p.met.LedgersReimported.Inc()
	return p.IngestLedger(ctx, index)
}

// Backfill ingests the inclusive index range [start, stop], several ledgers
// in flight at once.
func (p *Pipeline) Backfill(ctx context.Context, start, stop uint32) error {
	if stop < start {
		return fmt.Errorf("backfill range [%d, %d] is inverted", start, stop)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for index := start; index <= stop; index++ {
		g.Go(func() error {
			return p.IngestLedger(ctx, index)
		})
	}
	return g.Wait()
}

// ProcessLedger runs one fetched ledger through prepare, decompose and
// persist. The ledger header is written last, so a stored header implies
// every transaction row underneath it is durable.
func (p *Pipeline) ProcessLedger(ctx context.Context, l *ledger.Ledger) error {
	log := p.log.With(zap.Uint32("ledger_index", l.Index))

	// Received -> Prepared: canonical bytes, content hash, ledger context.
	prepared := make([]*ledger.Transaction, 0, len(l.Transactions))
	var prepareFailures int
	for i, tx := range l.Transactions {
		tx.TxIndex = uint32(i)
		if err := tx.Prepare(l); err != nil {
			// Codec-class failure: fatal to this transaction, never
			// retried blindly.
			prepareFailures++
			log.Error("transaction failed to prepare",
				zap.Uint32("tx_index", uint32(i)),
				zap.Error(err))
			continue
		}
		prepared = append(prepared, tx)
	}

	p.track.begin(l.Index, len(l.Transactions))
	p.met.PendingLedgers.Set(float64(p.track.pending()))
	defer func() {
		p.met.PendingLedgers.Set(float64(p.track.pending()))
	}()
	for i := 0; i < prepareFailures; i++ {
		p.track.fail(l.Index)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for _, tx := range prepared {
		g.Go(func() error {
			if err := p.persistTransaction(gctx, tx); err != nil {
				p.track.fail(l.Index)
				log.Error("transaction abandoned",
					zap.String("tx_hash", tx.Hash.String()),
					zap.Uint32("tx_index", tx.TxIndex),
					zap.Error(err))
				return nil // other ledgers and siblings keep going
			}
			p.track.ack(l.Index)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	acked, failed, done := p.track.complete(l.Index)
	if !done {
		p.met.LedgersFailed.Inc()
		return fmt.Errorf("%w: index %d, %d persisted, %d failed",
			ErrLedgerFailed, l.Index, acked, failed)
	}

	// Persisting -> Persisted: the header row seals the ledger.
	err := p.gw.PutRows(ctx, storage.TableLedgers, []storage.Row{
		storage.NewLedgerRow(l).ToRow(),
	})
	if err != nil {
		p.met.LedgersFailed.Inc()
		return fmt.Errorf("persist ledger header %d: %w", l.Index, err)
	}

	p.met.LedgersIngested.Inc()
	log.Info("ledger persisted", zap.Int("transactions", acked))
	return nil
}

// persistTransaction decomposes one prepared transaction and writes its
// rows, retrying storage failures up to the attempt budget. Events are
// emitted only after the rows are durable.
func (p *Pipeline) persistTransaction(ctx context.Context, tx *ledger.Transaction) error {
	parsed, err := parser.Parse(tx)
	if err != nil {
		// Decomposition is pure; retrying cannot help.
		return fmt.Errorf("decompose: %w", err)
	}

	byTable := eventRows(tx, parsed)

	backoff := p.cfg.RetryBackoff
	for attempt := 1; ; attempt++ {
		err = p.writeTables(ctx, byTable)
		if err == nil {
			break
		}
		if attempt >= p.cfg.MaxAttempts {
			return err
		}

		p.met.TransactionRetries.Inc()
		p.log.Warn("transaction persist failed, retrying",
			zap.String("tx_hash", tx.Hash.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	p.met.TransactionsParsed.Inc()
	p.emit(parsed, tx)
	return nil
}

func (p *Pipeline) writeTables(ctx context.Context, byTable map[storage.Table][]storage.Row) error {
	for table, rows := range byTable {
		if err := p.gw.PutRows(ctx, table, rows); err != nil {
			return fmt.Errorf("table %s: %w", table, err)
		}
	}
	return nil
}

// eventRows maps one decomposed transaction to its stored rows per table.
func eventRows(tx *ledger.Transaction, parsed *parser.Parsed) map[storage.Table][]storage.Row {
	byTable := map[storage.Table][]storage.Row{
		storage.TableTransactions: {storage.NewTransactionRow(tx).ToRow()},
	}
	for _, ex := range parsed.Exchanges {
		byTable[storage.TableExchanges] = append(byTable[storage.TableExchanges], storage.ExchangeRow(ex))
	}
	for _, pay := range parsed.Payments {
		byTable[storage.TablePayments] = append(byTable[storage.TablePayments], storage.PaymentRow(pay))
	}
	for _, bc := range parsed.BalanceChanges {
		byTable[storage.TableBalanceChanges] = append(byTable[storage.TableBalanceChanges], storage.BalanceChangeRow(bc))
	}
	for _, ac := range parsed.AccountsCreated {
		byTable[storage.TableAccountsCreated] = append(byTable[storage.TableAccountsCreated], storage.AccountCreatedRow(ac))
	}
	for _, m := range parsed.Memos {
		byTable[storage.TableMemos] = append(byTable[storage.TableMemos], storage.MemoRow(m))
	}
	for _, aa := range parsed.AffectedAccounts {
		byTable[storage.TableAffectedAccounts] = append(byTable[storage.TableAffectedAccounts], storage.AffectedAccountRow(aa))
	}
	return byTable
}

// emit fans the derived events out to the downstream streams.
func (p *Pipeline) emit(parsed *parser.Parsed, tx *ledger.Transaction) {
	count := 0
	send := func(stream string, event any) {
		if err := p.emitter.Emit(stream, event); err != nil {
			p.log.Warn("event emission failed",
				zap.String("stream", stream),
				zap.String("tx_hash", tx.Hash.String()),
				zap.Error(err))
			return
		}
		p.met.EventsEmitted.WithLabelValues(stream).Inc()
		count++
	}

	for _, ex := range parsed.Exchanges {
		send(StreamExchanges, ex)
	}
	for _, pay := range parsed.Payments {
		send(StreamPayments, pay)
		send(StreamAccountPayments, pay)
	}
	send(StreamStats, TxStats{
		Type:        tx.Type,
		Result:      tx.Result,
		LedgerIndex: tx.LedgerIndex,
		EventCount:  count,
	})
}
