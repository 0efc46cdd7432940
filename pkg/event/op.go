// Package event defines the completion records exchanged between listening
// endpoints, the completion dispatcher and sessions.
package event

import "errors"

// Op identifies the asynchronous operation a record last completed.
type Op uint8

const (
	OpNone Op = iota
	OpAccept
	OpConnect
	OpDisconnect
	OpReceive
	OpSend
	OpReceiveFrom
	OpSendTo
)

// ErrOperationAborted is reported when an operation completes because its
// endpoint was closed.
var ErrOperationAborted = errors.New("operation aborted")

func (o Op) String() string {
	switch o {
	case OpNone:
		return "none"
	case OpAccept:
		return "accept"
	case OpConnect:
		return "connect"
	case OpDisconnect:
		return "disconnect"
	case OpReceive:
		return "receive"
	case OpSend:
		return "send"
	case OpReceiveFrom:
		return "receive-from"
	case OpSendTo:
		return "send-to"
	default:
		return "unknown"
	}
}
