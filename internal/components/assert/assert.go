// Package assert holds constructor-time invariant checks, a failing check is a
// programming error and panics.
package assert

// NotNil panics when a required dependency was not provided.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
}
