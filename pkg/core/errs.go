package core

import "errors"

var (
	// ErrNoData indicates a data source that loaded successfully but
	// produced zero samples.
	ErrNoData = errors.New("no market data loaded")
	// ErrMalformedData indicates a source that could not be parsed.
	ErrMalformedData = errors.New("malformed market data")
	// ErrCacheCorrupted indicates a report-cache entry that carries the
	// current encoding version but fails to decode.
	ErrCacheCorrupted = errors.New("corrupted cache entry")
)
