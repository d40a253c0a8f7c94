package domain

import "errors"

var (
	// ErrMalformedRecord marks a raw row that cannot be parsed into a
	// timestamp and value. Adapters drop such rows and report a count;
	// a malformed row is never fatal to the batch.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrSourceUnavailable marks a transport or upstream failure while
	// fetching raw data. It is surfaced to the caller unchanged; only the
	// calling orchestration may retry.
	ErrSourceUnavailable = errors.New("source unavailable")
)
