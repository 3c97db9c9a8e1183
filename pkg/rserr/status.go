// Package rserr defines the error taxonomy shared by every core component:
// BlockManager, Entry, Bucket and Storage all return errors built with this
// package so that callers (and eventually the HTTP façade) can recover a
// stable "kind" without parsing error strings.
package rserr

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is one of the error categories a core operation can fail with.
type Kind int

const (
	// KindUnknown is returned by GetKind() for errors not produced by this
	// package (e.g. a raw I/O error that slipped through unwrapped).
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindUnprocessableEntity
	KindQuota
	KindIO
	KindCorrupt
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindUnprocessableEntity:
		return "UnprocessableEntity"
	case KindQuota:
		return "Quota"
	case KindIO:
		return "IO"
	case KindCorrupt:
		return "Corrupt"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// codeForKind maps a Kind onto the grpc/codes.Code used internally to carry
// it. The mapping only needs to be injective; the HTTP façade is what maps
// these onto actual HTTP status codes (see pkg/httpapi).
func codeForKind(k Kind) codes.Code {
	switch k {
	case KindNotFound:
		return codes.NotFound
	case KindConflict:
		return codes.AlreadyExists
	case KindUnprocessableEntity:
		return codes.InvalidArgument
	case KindQuota:
		return codes.ResourceExhausted
	case KindIO:
		return codes.Unavailable
	case KindCorrupt:
		return codes.DataLoss
	case KindInternal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

var kindForCode = map[codes.Code]Kind{
	codes.NotFound:          KindNotFound,
	codes.AlreadyExists:     KindConflict,
	codes.InvalidArgument:   KindUnprocessableEntity,
	codes.ResourceExhausted: KindQuota,
	codes.Unavailable:       KindIO,
	codes.DataLoss:          KindCorrupt,
	codes.Internal:          KindInternal,
}

// New creates an error of the given kind with a formatted message.
func New(k Kind, format string, args ...interface{}) error {
	return status.Error(codeForKind(k), fmt.Sprintf(format, args...))
}

// Wrap prepends msg to err's message while preserving its Kind. If err does
// not carry a Kind produced by this package, the result is KindUnknown.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	p := status.Convert(err).Proto()
	p.Message = fmt.Sprintf("%s: %s", msg, p.Message)
	return status.ErrorProto(p)
}

// WrapWithKind prepends msg to err's message and sets its Kind to k,
// discarding whatever kind err previously carried. Used when a low-level
// I/O error needs to be reported as an rserr.Kind (e.g. an os.Open failure
// becomes KindIO).
func WrapWithKind(err error, k Kind, msg string) error {
	if err == nil {
		return nil
	}
	return status.Error(codeForKind(k), fmt.Sprintf("%s: %s", msg, err.Error()))
}

// GetKind recovers the Kind an error was created with. Errors not produced
// by this package report KindUnknown.
func GetKind(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	c := status.Code(err)
	if k, ok := kindForCode[c]; ok {
		return k
	}
	return KindUnknown
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	return GetKind(err) == k
}
