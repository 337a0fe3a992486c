package filing

import (
	"encoding/json"
	"fmt"
)

// CheckpointKey is the relative location of a day's checkpoint:
// <YYYY>/<MM>/<YYYYMMDD>-filing.json.
func CheckpointKey(day Date) string {
	return fmt.Sprintf("%04d/%02d/%s-filing.json", day.Year, int(day.Month), day.Compact())
}

// EncodeCheckpoint serialises a day's transactions. A nil slice is written as
// an empty array.
func EncodeCheckpoint(txs []Transaction) ([]byte, error) {
	if txs == nil {
		txs = []Transaction{}
	}
	raw, err := json.Marshal(txs)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return raw, nil
}

// DecodeCheckpoint parses a checkpoint; any decode failure wraps ErrCheckpointCorrupt.
func DecodeCheckpoint(raw []byte) ([]Transaction, error) {
	var txs []Transaction
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCheckpointCorrupt, err)
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}
