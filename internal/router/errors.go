package router

import "fmt"

// ValidationError rejects a malformed request before any provider is
// invoked. Handlers map it to HTTP 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// PersistenceError is fatal to the whole request: a failure to append an
// accounting row or to commit the transaction. Handlers map it to HTTP 500.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
