package pool

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("connection pool closed")

// ConnectionError reports that the database could not be reached or a
// connection could not be acquired
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError reports whether err is a pool failure
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr) || errors.Is(err, ErrClosed)
}
