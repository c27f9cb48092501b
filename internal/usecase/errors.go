package usecase

import "errors"

// ErrAmbiguousID is returned when an id prefix matches several documents.
var ErrAmbiguousID = errors.New("ambiguous document id")
