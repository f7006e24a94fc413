package stage

import (
	"context"
	"errors"
)

// Sentinel errors wrapped by stage implementations.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrConnection    = errors.New("connection error")
	ErrValidation    = errors.New("validation error")
	ErrInsertion     = errors.New("insertion error")
)

// Error kinds used as the "kind" metric label.
const (
	KindConfiguration = "configuration"
	KindConnection    = "connection"
	KindValidation    = "validation"
	KindInsertion     = "insertion"
	KindCanceled      = "canceled"
	KindOther         = "other"
)

// Kind classifies err by the sentinel it wraps.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInsertion):
		return KindInsertion
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindOther
	}
}
