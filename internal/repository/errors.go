package repository

import "errors"

// ErrDuplicate is returned when a conditional create loses to an
// existing item (e.g. two registrations racing on the same email).
var ErrDuplicate = errors.New("item already exists")
