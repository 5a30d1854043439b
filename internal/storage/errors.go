package storage

import "errors"

// ErrObjectNotFound signals a key with no stored bytes.
var ErrObjectNotFound = errors.New("storage: object not found")
