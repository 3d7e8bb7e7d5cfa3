package executor

import "errors"

// ErrExecutionFailed indicates a migration script failed to execute.
var ErrExecutionFailed = errors.New("migration execution failed")
