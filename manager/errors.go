package manager

import "errors"

// ErrConsistency is returned by the manager's routing, split, migrate,
// save, index and drop operations once the manager has poisoned itself
// after a fatal invariant breach. Read-only accessors (Chunks, Stats,
// GetVersion, AssertValid and the like) do not check the flag. A fresh
// Reload clears it.
var ErrConsistency = errors.New("manager: consistency violation, reload required")
