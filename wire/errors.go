package wire

import (
	"errors"
	"fmt"
)

// ErrLineTooLong is the cause carried by a FramingError for an overlong line.
var ErrLineTooLong = errors.New("wire: line exceeds maximum length")

// FramingError reports a malformed, overlong or truncated frame.
// The stream position is no longer trustworthy for the current exchange.
//
// Connection handling: CLOSE connection
type FramingError struct {
	Message string
	Err     error
}

func (e *FramingError) Error() string {
	if e.Err != nil {
		return "framing error: " + e.Message + ": " + e.Err.Error()
	}
	return "framing error: " + e.Message
}

// Unwrap returns the underlying error for error chain inspection
func (e *FramingError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - framing errors leave the stream unaligned
func (e *FramingError) ShouldCloseConnection() bool {
	return true
}

// ConnectionError wraps underlying I/O errors from socket reads and writes.
//
// Connection handling: Connection is already broken, CLOSE it
type ConnectionError struct {
	Op  string // Operation that failed (read, write)
	Err error  // Underlying error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - connection errors mean connection is broken
func (e *ConnectionError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection must be dropped.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires closing the connection.
//
// Returns false for nil and for errors that declare the protocol state intact
// (for example a rejected store operation). Unknown errors close the connection.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
