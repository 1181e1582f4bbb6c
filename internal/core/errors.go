package core

import "errors"

// ErrNotFound is returned by a RecordStore when no record exists for a key.
var ErrNotFound = errors.New("record not found")
