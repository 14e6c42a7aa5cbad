package errs

import "errors"

// From recovers the classification from an error chain. Errors that were
// never classified come back as KindUnknown, so callers can always rely on
// having UI-ready presentation data.
func From(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return FromUnknown(err)
}

// IsKind reports whether err classifies as the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *ClassifiedError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == kind
}

// IsRetryable reports whether err may be retried. Unclassified errors are
// never retryable.
func IsRetryable(err error) bool {
	var ce *ClassifiedError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Retryable
}
