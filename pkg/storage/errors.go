package storage

import "errors"

// ErrNotFound is returned when a requested offer does not exist.
var ErrNotFound = errors.New("not found")

// ErrOfferExists is returned when an offer with the same id is already stored for the owner.
var ErrOfferExists = errors.New("offer already exists")

// ErrHeadMoved is returned when an append names a previous header that is no longer the chain head.
var ErrHeadMoved = errors.New("chain head moved")

// ErrStateConflict is returned when an offer is not in the state a transition expects.
var ErrStateConflict = errors.New("offer state conflict")
