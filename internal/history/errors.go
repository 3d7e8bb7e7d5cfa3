package history

import "errors"

// ErrPersistence wraps every failure to create, read or write the ledger table.
var ErrPersistence = errors.New("schema history persistence failed")

// ErrVersionConflict indicates a ledger row for the version already exists,
// typically because another process applied it concurrently.
var ErrVersionConflict = errors.New("schema history version already recorded")
