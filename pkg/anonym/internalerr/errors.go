package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrMalformedRow       = errors.New("malformed row")
	ErrLexiconUnavailable = errors.New("lexicon unavailable")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrInvalidConfig      = errors.New("invalid configuration")
)
