package conn

import (
	"errors"
	"fmt"
)

// Sentinel errors for connection operations.
// These can be checked using errors.Is().
var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the connection's current state.
	ErrInvalidTransition = errors.New("conn: invalid state transition")

	// ErrNotConnected is returned when sending on a connection that is not
	// connected.
	ErrNotConnected = errors.New("conn: not connected")

	// ErrConnectFailed is returned when the connect attempt fails.
	ErrConnectFailed = errors.New("conn: connect failed")

	// ErrLost is reported when the peer closes the connection.
	ErrLost = errors.New("conn: connection lost")

	// ErrRead is reported when reading from the socket fails.
	ErrRead = errors.New("conn: read error")

	// ErrWouldBlock is returned by a transport when the socket had no data
	// after all. It is not a failure.
	ErrWouldBlock = errors.New("conn: no data available")
)

// ConnectError describes a failed connect attempt.
type ConnectError struct {
	Host string
	Port int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Is makes every ConnectError match ErrConnectFailed.
func (e *ConnectError) Is(target error) bool {
	return target == ErrConnectFailed
}
