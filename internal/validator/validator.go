// Package validator walks the stored ledger chain in index order and
// proves each ledger correct before advancing: the transaction-set hash is
// recomputed from the stored transaction rows and compared to the header's
// declared value, and the parent hash must link to the previously
// validated ledger. A mismatch never advances the checkpoint; it triggers
// a re-import of the offending ledger, or a bounded backward step when the
// chain link itself is broken.
package validator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/LeJamon/xrplhist/internal/ledger"
	"github.com/LeJamon/xrplhist/internal/metrics"
	"github.com/LeJamon/xrplhist/internal/source"
	"github.com/LeJamon/xrplhist/internal/storage"
)

// ErrHashMismatch reports a ledger whose stored rows do not reproduce its
// declared hashes.
var ErrHashMismatch = errors.New("hash mismatch")

// Reimporter replaces one stored ledger with a fresh import. The pipeline
// satisfies it.
type Reimporter interface {
	ReimportLedger(ctx context.Context, index uint32) error
}

// Config holds the validator configuration.
type Config struct {
	// StartIndex is the first ledger of the chain under validation. The
	// bootstrap checkpoint trusts this ledger's parent hash, since its
	// predecessor is outside the stored range.
	StartIndex uint32 `json:"start_index" mapstructure:"start_index"`

	// TipInterval is how long to sleep once validation has caught up with
	// the network's current validated ledger.
	TipInterval time.Duration `json:"tip_interval" mapstructure:"tip_interval"`

	// RecoverBackoff is the pause after a mismatch or a missing ledger,
	// giving the triggered re-import time to land.
	RecoverBackoff time.Duration `json:"recover_backoff" mapstructure:"recover_backoff"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StartIndex:     1,
		TipInterval:    60 * time.Second,
		RecoverBackoff: 2 * time.Second,
	}
}

// Validator re-verifies the stored chain one ledger at a time.
type Validator struct {
	cfg Config
	gw  storage.Gateway
	src source.Source
	re  Reimporter
	met *metrics.Metrics
	log *zap.Logger
}

// New wires a validator. Nil metrics are replaced with a private registry.
func New(cfg Config, gw storage.Gateway, src source.Source, re Reimporter, met *metrics.Metrics, log *zap.Logger) *Validator {
	if cfg.StartIndex == 0 {
		cfg.StartIndex = DefaultConfig().StartIndex
	}
	if cfg.TipInterval <= 0 {
		cfg.TipInterval = DefaultConfig().TipInterval
	}
	if cfg.RecoverBackoff <= 0 {
		cfg.RecoverBackoff = DefaultConfig().RecoverBackoff
	}
	if met == nil {
		met = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{
		cfg: cfg,
		gw:  gw,
		src: src,
		re:  re,
		met: met,
		log: log.Named("validator"),
	}
}

// Run validates forward from the checkpoint until the context is done.
func (v *Validator) Run(ctx context.Context) error {
	for {
		wait, err := v.Cycle(ctx)
		if err != nil && ctx.Err() == nil {
			v.log.Error("validation cycle failed", zap.Error(err))
			if wait <= 0 {
				wait = v.cfg.RecoverBackoff
			}
		}
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Cycle validates at most one ledger and returns how long to sleep before
// the next cycle: zero to continue immediately, TipInterval at the chain
// tip, RecoverBackoff while waiting for a re-import.
func (v *Validator) Cycle(ctx context.Context) (time.Duration, error) {
	cp, err := storage.LoadCheckpoint(ctx, v.gw)
	if errors.Is(err, storage.ErrRowNotFound) {
		return v.bootstrap(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp.LastValidatedHash == "" {
		// Cleared by a backward walk reaching the start of the chain.
		return v.bootstrap(ctx)
	}
	return v.validateNext(ctx, cp)
}

// bootstrap validates the configured start ledger without a parent check
// and seeds the checkpoint from it.
func (v *Validator) bootstrap(ctx context.Context) (time.Duration, error) {
	header, wait, err := v.loadHeader(ctx, v.cfg.StartIndex)
	if header == nil {
		return wait, err
	}
	if err := v.verifyTxSet(ctx, *header); err != nil {
		return v.cfg.RecoverBackoff, v.recover(ctx, header.Index, err)
	}

	cp := storage.Checkpoint{
		LastValidatedIndex:      header.Index,
		LastValidatedHash:       header.Hash,
		LastValidatedParentHash: header.ParentHash,
	}
	if err := storage.SaveCheckpoint(ctx, v.gw, cp); err != nil {
		return 0, fmt.Errorf("save checkpoint: %w", err)
	}
	v.met.ValidatedIndex.Set(float64(header.Index))
	v.log.Info("validation bootstrapped",
		zap.Uint32("ledger_index", header.Index),
		zap.String("ledger_hash", header.Hash))
	return 0, nil
}

func (v *Validator) validateNext(ctx context.Context, cp storage.Checkpoint) (time.Duration, error) {
	next := cp.LastValidatedIndex + 1
	header, wait, err := v.loadHeader(ctx, next)
	if header == nil {
		return wait, err
	}

	if err := v.verifyTxSet(ctx, *header); err != nil {
		return v.cfg.RecoverBackoff, v.recover(ctx, next, err)
	}

	if header.ParentHash != cp.LastValidatedHash {
		// The stored chain forked somewhere behind us. Step the checkpoint
		// back one ledger and retry forward; repeated mismatches walk the
		// fork back, bounded by the start of the chain.
		v.met.ValidatorMismatch.Inc()
		v.log.Warn("parent hash link broken, stepping back",
			zap.Uint32("ledger_index", next),
			zap.String("parent_hash", header.ParentHash),
			zap.String("last_validated_hash", cp.LastValidatedHash))
		return 0, v.stepBack(ctx, cp)
	}

	cp = storage.Checkpoint{
		LastValidatedIndex:      header.Index,
		LastValidatedHash:       header.Hash,
		LastValidatedParentHash: header.ParentHash,
	}
	if err := storage.SaveCheckpoint(ctx, v.gw, cp); err != nil {
		return 0, fmt.Errorf("save checkpoint: %w", err)
	}
	v.met.ValidatedIndex.Set(float64(header.Index))
	v.log.Debug("ledger validated", zap.Uint32("ledger_index", header.Index))
	return 0, nil
}

// loadHeader reads the stored ledger header at the given index. A missing
// header at the chain tip means validation has caught up; a missing header
// below the tip is a gap that gets re-imported.
func (v *Validator) loadHeader(ctx context.Context, index uint32) (*storage.LedgerRow, time.Duration, error) {
	row, err := v.gw.GetRow(ctx, storage.TableLedgers, storage.LedgerKey(index))
	if errors.Is(err, storage.ErrRowNotFound) {
		atTip, tipErr := v.atTip(ctx, index)
		if tipErr != nil {
			return nil, v.cfg.RecoverBackoff, tipErr
		}
		if atTip {
			return nil, v.cfg.TipInterval, nil
		}
		v.log.Info("ledger missing from storage, requesting import",
			zap.Uint32("ledger_index", index))
		return nil, v.cfg.RecoverBackoff, v.reimport(ctx, index)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read ledger %d: %w", index, err)
	}

	header, err := storage.LedgerRowFromRow(row)
	if err != nil {
		return nil, v.cfg.RecoverBackoff, v.recover(ctx, index, err)
	}
	return &header, 0, nil
}

// atTip reports whether the given index is beyond the network's current
// validated ledger.
func (v *Validator) atTip(ctx context.Context, index uint32) (bool, error) {
	tip, err := v.src.FetchLedger(ctx, source.Validated(), source.FetchOptions{})
	if err != nil {
		return false, fmt.Errorf("fetch validated tip: %w", err)
	}
	return index > tip.Index, nil
}

// verifyTxSet rebuilds the ledger's transaction set from stored rows and
// recomputes its digest.
func (v *Validator) verifyTxSet(ctx context.Context, header storage.LedgerRow) error {
	txs := make([]*ledger.Transaction, 0, len(header.TxHashes))
	for _, hash := range header.TxHashes {
		row, err := v.gw.GetRow(ctx, storage.TableTransactions, hash)
		if errors.Is(err, storage.ErrRowNotFound) {
			return fmt.Errorf("%w: ledger %d transaction %s missing from storage",
				ErrHashMismatch, header.Index, hash)
		}
		if err != nil {
			return fmt.Errorf("read transaction %s: %w", hash, err)
		}
		txRow, err := storage.TransactionRowFromRow(row)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHashMismatch, err)
		}
		tx, err := txRow.ToTransaction()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrHashMismatch, err)
		}
		txs = append(txs, tx)
	}

	computed, err := ledger.TxSetHash(txs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHashMismatch, err)
	}
	if computed.String() != header.TxHash {
		return fmt.Errorf("%w: ledger %d transaction set digest %s, header declares %s",
			ErrHashMismatch, header.Index, computed, header.TxHash)
	}
	return nil
}

// recover reacts to a broken ledger: count the mismatch, log it, and ask
// the pipeline to replace the stored record. The checkpoint stays put, so
// the same index is re-verified next cycle.
func (v *Validator) recover(ctx context.Context, index uint32, cause error) error {
	v.met.ValidatorMismatch.Inc()
	v.log.Warn("stored ledger failed verification",
		zap.Uint32("ledger_index", index),
		zap.Error(cause))
	return v.reimport(ctx, index)
}

func (v *Validator) reimport(ctx context.Context, index uint32) error {
	if err := v.re.ReimportLedger(ctx, index); err != nil {
		return fmt.Errorf("reimport ledger %d: %w", index, err)
	}
	return nil
}

// stepBack moves the checkpoint to the previous stored ledger. At the
// start of the chain the checkpoint is cleared instead, so the next cycle
// bootstraps again.
func (v *Validator) stepBack(ctx context.Context, cp storage.Checkpoint) error {
	if cp.LastValidatedIndex <= v.cfg.StartIndex {
		return storage.SaveCheckpoint(ctx, v.gw, storage.Checkpoint{
			LastValidatedIndex:      v.cfg.StartIndex - 1,
			LastValidatedHash:       "",
			LastValidatedParentHash: "",
		})
	}

	prev := cp.LastValidatedIndex - 1
	row, err := v.gw.GetRow(ctx, storage.TableLedgers, storage.LedgerKey(prev))
	if errors.Is(err, storage.ErrRowNotFound) {
		return v.reimport(ctx, prev)
	}
	if err != nil {
		return fmt.Errorf("read ledger %d: %w", prev, err)
	}
	header, err := storage.LedgerRowFromRow(row)
	if err != nil {
		return v.recover(ctx, prev, err)
	}
	return storage.SaveCheckpoint(ctx, v.gw, storage.Checkpoint{
		LastValidatedIndex:      header.Index,
		LastValidatedHash:       header.Hash,
		LastValidatedParentHash: header.ParentHash,
	})
}
