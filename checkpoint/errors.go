package checkpoint

import (
	"errors"
	"fmt"
)

// Kind classifies why a checkpoint operation failed.
type Kind uint8

const (
	// KindInvalidArgument: the call was rejected locally, nothing was sent.
	KindInvalidArgument Kind = iota + 1
	// KindTransport: no response arrived from the authority.
	KindTransport
	// KindAuthority: the authority answered with a non-zero return code.
	KindAuthority
	// KindProtocolMismatch: the authority answered with a message this operation
	// does not expect.
	KindProtocolMismatch
)

// Integer codes of the failures that do not come from the authority.
const (
	CodeInvalidArgument  int32 = 22 // EINVAL
	CodeTransport        int32 = -1
	CodeProtocolMismatch int32 = 1000
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindTransport:
		return "transport failure"
	case KindAuthority:
		return "authority error"
	case KindProtocolMismatch:
		return "protocol mismatch"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument, Code: CodeInvalidArgument}
	ErrTransport        = &Error{Kind: KindTransport, Code: CodeTransport}
	ErrAuthority        = &Error{Kind: KindAuthority}
	ErrProtocolMismatch = &Error{Kind: KindProtocolMismatch, Code: CodeProtocolMismatch}
)

// Error is returned by every failed checkpoint operation.
type Error struct {
	Kind Kind
	Op   string // "able", "create", "complete", ...
	Code int32  // authority return code, or one of the Code constants
	Err  error  // underlying cause, nil for authority errors
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = "checkpoint " + e.Op + ": " + msg
	}
	if e.Kind == KindAuthority {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a target *Error of the same kind. An authority target with a
// non-zero code also requires the codes to be equal, so
// errors.Is(err, &Error{Kind: KindAuthority, Code: 2031}) tests for one code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Kind != e.Kind {
		return false
	}
	if t.Kind == KindAuthority && t.Code != 0 {
		return t.Code == e.Code
	}
	return true
}

// Status maps an error returned by this package onto the integer taxonomy:
// 0 for nil, the error's code for *Error and CodeTransport for anything else.
func Status(err error) int32 {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeTransport
}

func invalidArgument(op, reason string) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Code: CodeInvalidArgument, Err: errors.New(reason)}
}

func transportFailure(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Code: CodeTransport, Err: err}
}

func authorityError(op string, rc int32) *Error {
	return &Error{Kind: KindAuthority, Op: op, Code: rc}
}

func protocolMismatch(op string, err error) *Error {
	return &Error{Kind: KindProtocolMismatch, Op: op, Code: CodeProtocolMismatch, Err: err}
}
