package search

import "errors"

// ErrIndexUnavailable reports that the inverted index could not serve a query
// and the record-store fallback failed as well. Callers should map it to a
// service-unavailable response rather than a client error.
var ErrIndexUnavailable = errors.New("search index unavailable")
