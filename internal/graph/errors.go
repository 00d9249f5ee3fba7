package graph

import "fmt"

// PreconditionError reports an invalid request: a missing root, an unknown
// git ref, a non-positive bound. The caller's input is wrong; nothing was
// written or read.
type PreconditionError struct {
	Msg string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Msg
}

// Preconditionf builds a PreconditionError.
func Preconditionf(format string, args ...any) error {
	return &PreconditionError{Msg: fmt.Sprintf(format, args...)}
}

// StoreWriteError wraps a graph backend failure during ingestion. Writes up
// to the failing file are durable; the run must be treated as incomplete.
type StoreWriteError struct {
	Err error
}

func (e *StoreWriteError) Error() string {
	return "graph write failed: " + e.Err.Error()
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// QueryError wraps a graph backend failure during a read operation.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
