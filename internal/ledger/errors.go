package ledger

import "errors"

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key (email, license plate) is
// already taken.
var ErrDuplicate = errors.New("duplicate")

// ErrInUse is returned when a row cannot be deleted because other rows
// still reference it, such as a vehicle with journeys.
var ErrInUse = errors.New("in use")
