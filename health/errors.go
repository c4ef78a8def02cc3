package health

import "errors"

// ErrCheckFailed marks a probe that did not come back right: no server
// answered, or a probe value read back corrupted.
var ErrCheckFailed = errors.New("health: check failed")

// ErrCheckTimeout marks a check abandoned at the aggregator's deadline.
// The Result carrying it reports StatusUnhealthy.
var ErrCheckTimeout = errors.New("health: check timeout")

// ErrCheckerNotFound is returned by Aggregator.Check for a name with no
// registered checker.
var ErrCheckerNotFound = errors.New("health: checker not found")
