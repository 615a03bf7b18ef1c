package types

import (
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind classifies failures coming out of the dispatch and stream layers.
type ErrorKind int

const (
	KindTransport ErrorKind = iota + 1
	KindAuth
	KindExchange
	KindProtocol
	KindRateLimit
	KindSequenceGap
)

// Sentinels for errors.Is. A *Error matches the sentinel of its Kind.
var (
	ErrTransport   = errors.New("transport error")
	ErrAuth        = errors.New("authentication error")
	ErrExchange    = errors.New("exchange error")
	ErrProtocol    = errors.New("protocol error")
	ErrRateLimit   = errors.New("rate limit exceeded")
	ErrSequenceGap = errors.New("sequence gap")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindAuth:
		return ErrAuth
	case KindExchange:
		return ErrExchange
	case KindProtocol:
		return ErrProtocol
	case KindRateLimit:
		return ErrRateLimit
	case KindSequenceGap:
		return ErrSequenceGap
	}
	return nil
}

func (k ErrorKind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown error"
}

// StackTracer is implemented by errors carrying a pkg/errors stack.
type StackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Error is the typed error returned by REST calls and surfaced by streams.
type Error struct {
	Kind     ErrorKind
	Exchange string
	// Code is the exchange-native error code, if the envelope carried one.
	Code    string
	Message string
	// Status is the HTTP status code, 0 for stream errors.
	Status int
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Exchange != "" {
		b.WriteString(e.Exchange)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (http %d)", e.Status)
	}
	if e.Code != "" {
		b.WriteString(" ")
		b.WriteString(e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// StackTrace returns the stack of the wrapped error when it has one.
func (e *Error) StackTrace() pkgerrors.StackTrace {
	var st StackTracer
	if errors.As(e.Err, &st) {
		return st.StackTrace()
	}
	return nil
}

// Retryable reports whether the caller may retry after a backoff.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindRateLimit
}

// IsRetryable reports whether err is a transport or rate limit failure.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}

// KindOf returns the kind of err, or 0 when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func withStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(StackTracer); ok {
		return err
	}
	return pkgerrors.WithStack(err)
}

// NewTransportError wraps a connection or timeout failure.
func NewTransportError(exchange string, err error) *Error {
	return &Error{Kind: KindTransport, Exchange: exchange, Err: withStack(err)}
}

// NewAuthError reports missing keys or a rejected signature.
func NewAuthError(exchange string, status int, message string) *Error {
	return &Error{Kind: KindAuth, Exchange: exchange, Status: status, Message: message}
}

// NewExchangeError reports a well-formed business failure.
func NewExchangeError(exchange, code, message string) *Error {
	return &Error{Kind: KindExchange, Exchange: exchange, Code: code, Message: message}
}

// NewProtocolError reports an unexpected payload shape.
func NewProtocolError(exchange string, err error) *Error {
	return &Error{Kind: KindProtocol, Exchange: exchange, Err: withStack(err)}
}

// NewRateLimitError reports a server-side rate limit rejection.
func NewRateLimitError(exchange string, status int, message string) *Error {
	return &Error{Kind: KindRateLimit, Exchange: exchange, Status: status, Message: message}
}

// NewSequenceGapError is raised inside the order book engine when updates
// were missed. It never reaches REST callers.
func NewSequenceGapError(market string, last, first int64) *Error {
	return &Error{
		Kind:    KindSequenceGap,
		Message: fmt.Sprintf("%s: expected sequence %d, got %d", market, last+1, first),
	}
}
