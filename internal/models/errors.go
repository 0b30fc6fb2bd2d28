package models

import "errors"

// ErrNotFound is returned by stores when a candidate id does not exist.
var ErrNotFound = errors.New("not found")
