package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

func ErrorIsAnyOf(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// IsContextDone reports whether err stems from a cancelled or expired context.
func IsContextDone(err error) bool {
	return ErrorIsAnyOf(err, context.Canceled, context.DeadlineExceeded)
}

func ToZeroLogArray[T fmt.Stringer](arr []T) *zerolog.Array {
	ret := zerolog.Arr()

	for _, elem := range arr {
		ret = ret.Str(elem.String())
	}

	return ret
}

// Reverse returns a reversed copy of s.
func Reverse[S ~[]E, E any](s S) S {
	out := make(S, len(s))

	for i, v := range s {
		out[len(s)-1-i] = v
	}

	return out
}
