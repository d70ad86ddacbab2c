package models

import "errors"

// ErrMalformedEntry marks a policy entry that violates a field constraint.
var ErrMalformedEntry = errors.New("malformed entry")
