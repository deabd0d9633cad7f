package data

import "github.com/pkg/errors"

// Error kinds shared by every layer. Callers wrap them with context and match
// with errors.Is.
var (
	// ErrNotAvailable means the remote source declares the chapter absent or
	// withdrawn. It is terminal for that chapter.
	ErrNotAvailable = errors.New("chapter not available")

	// ErrTransientNetwork covers connection failures, timeouts and
	// non-success responses. The scheduler retries on its next poll.
	ErrTransientNetwork = errors.New("transient network failure")

	// ErrParse means an expected embedded data block is missing or malformed.
	ErrParse = errors.New("unable to parse remote data")

	// ErrConfiguration means notification credentials are incomplete.
	ErrConfiguration = errors.New("incomplete configuration")

	// ErrStorage wraps filesystem failures.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound is returned by local lookups.
	ErrNotFound = errors.New("not found")
)

// Storage wraps a filesystem error so that it matches ErrStorage while keeping
// the original cause in the chain.
func Storage(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: ErrStorage, err: errors.Wrapf(err, format, args...)}
}

// Transient wraps a network error so that it matches ErrTransientNetwork.
func Transient(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: ErrTransientNetwork, err: errors.Wrapf(err, format, args...)}
}

type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string {
	return e.err.Error()
}

func (e *kindError) Unwrap() error {
	return e.err
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}
