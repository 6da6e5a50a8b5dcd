package storage

import "context"

// checkpointKey is the fixed control-table rowkey of the validator
// checkpoint singleton.
const checkpointKey = "validator_checkpoint"

// Checkpoint is the validator's durable record of the last ledger proven
// hash-chain correct.
type Checkpoint struct {
	LastValidatedIndex      uint32
	LastValidatedHash       string
	LastValidatedParentHash string
}

// SaveCheckpoint persists the checkpoint to the control table.
func SaveCheckpoint(ctx context.Context, gw Gateway, cp Checkpoint) error {
	return gw.PutRows(ctx, TableControl, []Row{{
		Key: checkpointKey,
		Columns: map[string]any{
			"last_validated_index":       cp.LastValidatedIndex,
			"last_validated_hash":        cp.LastValidatedHash,
			"last_validated_parent_hash": cp.LastValidatedParentHash,
		},
	}})
}

// LoadCheckpoint reads the checkpoint back, or ErrRowNotFound when
// validation has never run.
func LoadCheckpoint(ctx context.Context, gw Gateway) (Checkpoint, error) {
	row, err := gw.GetRow(ctx, TableControl, checkpointKey)
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{
		LastValidatedIndex:      colUint32(row.Columns, "last_validated_index"),
		LastValidatedHash:       colString(row.Columns, "last_validated_hash"),
		LastValidatedParentHash: colString(row.Columns, "last_validated_parent_hash"),
	}, nil
}
