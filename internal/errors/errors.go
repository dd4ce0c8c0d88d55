// Package errors holds the error helpers shared by the experiment engine.
package errors

import (
	"context"
	"errors"
)

// With returns an error that represents top wrapped on top of the base error.
// The message is the base error's; errors.Is and errors.As match either side.
func With(base, top error) error {
	if base == nil && top == nil {
		return nil
	}
	if top == nil {
		return base
	}
	if base == nil {
		return top
	}
	return union{error: base, top: top}
}

type union struct {
	error
	top error
}

func (u union) Is(target error) bool {
	return errors.Is(u.top, target)
}

func (u union) As(target any) bool {
	return errors.As(u.top, target)
}

func (u union) Unwrap() error {
	return u.error
}

// Canonical reduces a raw behavior failure to the single error value that is
// stored in an observation. A joined error with exactly one non-nil member is
// replaced by that member; only that one level is removed. Any other error,
// including %w wrapping, is returned unchanged.
func Canonical(err error) error {
	if err == nil {
		return nil
	}

	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return err
	}

	var only error
	for _, member := range joined.Unwrap() {
		if member == nil {
			continue
		}
		if only != nil {
			return err
		}
		only = member
	}
	if only == nil {
		return err
	}
	return only
}

// IsContextError reports whether err is the result of a cancelled or expired context.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
