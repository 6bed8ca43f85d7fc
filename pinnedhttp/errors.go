package pinnedhttp

import (
	"errors"
	"fmt"
)

// Kind classifies a failed exchange.
type Kind uint8

const (
	// KindUnknown is returned by KindOf for errors that did not come from
	// this package.
	KindUnknown Kind = iota

	// KindInvalidTarget means the URL could not be turned into a request:
	// no host, unsupported scheme, or header/method injection.
	KindInvalidTarget

	// KindInterfaceUnavailable means no interface of the requested class
	// could carry the connection.
	KindInterfaceUnavailable

	// KindConnectionFailed covers resolution, connect and TLS failures.
	KindConnectionFailed

	// KindIO covers write or read failures after the connection was ready.
	KindIO

	// KindCancelled means the caller cancelled the exchange.
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:              "unknown",
	KindInvalidTarget:        "invalid target",
	KindInterfaceUnavailable: "interface unavailable",
	KindConnectionFailed:     "connection failed",
	KindIO:                   "i/o error",
	KindCancelled:            "cancelled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error is the error type returned for every failed exchange.
//
// Match the kind with errors.Is against the sentinel values:
//
//	resp, err := client.Do(ctx, pinnedhttp.Get(url))
//	if errors.Is(err, pinnedhttp.ErrInterfaceUnavailable) {
//	    // no cellular data session
//	}
//
// The underlying cause remains reachable through errors.As / errors.Unwrap.
type Error struct {
	Kind Kind
	// Op is the stage that failed: "encode", "select", "dial", "tls",
	// "observe", "write" or "read".
	Op  string
	Err error
}

// Sentinel errors, one per Kind.
var (
	ErrInvalidTarget        = &Error{Kind: KindInvalidTarget}
	ErrInterfaceUnavailable = &Error{Kind: KindInterfaceUnavailable}
	ErrConnectionFailed     = &Error{Kind: KindConnectionFailed}
	ErrIO                   = &Error{Kind: KindIO}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

func (e *Error) Error() string {
	msg := "pinnedhttp: "
	if e.Op != "" {
		msg += e.Op + ": "
	}
	msg += e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
