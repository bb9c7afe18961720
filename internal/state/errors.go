package state

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// IllegalMove is returned by Board.Apply when the given Action is not
// among Derived.Actions for the board it is applied to. It is a regular
// error, not a panic: callers (a human UI, a fuzzer, a malformed network
// message) routinely pass illegal actions and must be able to handle that
// without an exceptions.TryCatch wrapper.
type IllegalMove struct {
	Action Action
	err    error
}

// Error implements the error interface.
func (e *IllegalMove) Error() string {
	return e.err.Error()
}

// Unwrap supports errors.Is/errors.As.
func (e *IllegalMove) Unwrap() error {
	return e.err
}

func illegalMove(action Action, format string, args ...any) error {
	return &IllegalMove{Action: action, err: errors.Wrapf(errors.Errorf(format, args...), "illegal action %s", action)}
}

// invariantViolation panics with exceptions.Panicf: these mark conditions
// that a correctly-functioning rules kernel must never reach (a
// disconnected hive surviving Act, a stack underflow). They are caught at
// the decision-driver boundary and converted to a regular error there --
// never inside this package.
func invariantViolation(format string, args ...any) {
	exceptions.Panicf("state: invariant violation: "+format, args...)
}
