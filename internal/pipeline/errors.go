package pipeline

import "errors"

// ErrBudgetExceeded aborts remaining stages when the wall clock budget
// for the run has been spent. Stages cut by the budget are skipped,
// not failed.
var ErrBudgetExceeded = errors.New("run time budget exceeded")
