// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Outcome is the result of a stage that degrades instead of failing. A
// degraded outcome carries the zero value and the cause; callers proceed with
// the zero value and may log Err.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Degraded records a failure. The value is the zero value of T.
func Degraded[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err}
}

// IsDegraded reports whether the stage failed and fell back to the zero value.
func (o Outcome[T]) IsDegraded() bool {
	return o.Err != nil
}
