package domain

import (
	"errors"
	"fmt"
)

// ErrDuplicateTrade is returned by the ledger when a trade_id was already
// logged. Callers must treat it as non-fatal: the trade is durably recorded.
var ErrDuplicateTrade = errors.New("trade already logged")

// StorageError wraps a persistence I/O failure. Surfaced to the caller so
// the lifecycle manager can retry the write instead of losing the trade.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
