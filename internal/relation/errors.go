package relation

import "errors"

var (
	// ErrMalformed marks classifier output that is not valid JSON or does
	// not match the relation schema. Malformed output is retried.
	ErrMalformed = errors.New("malformed classification")

	// ErrClassifierUnavailable is returned by ResolveAll when the
	// classifier transport failed for every article of the batch.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)
