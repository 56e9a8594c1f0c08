package usecase

import "fmt"

// ErrRetrieval indicates the durable message log could not be read or
// returned malformed rows. Sessions degrade to an empty (or cached) timeline
// instead of failing.
var ErrRetrieval = fmt.Errorf("messenger use case retrieval error")
