package storage

import "errors"

// ErrNotFound is returned when a store holds no record for the request.
var ErrNotFound = errors.New("not found")
