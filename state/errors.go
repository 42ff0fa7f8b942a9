package state

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTypeMismatch    = errors.New("value does not match slice type")
	ErrSubscriberPanic = errors.New("subscriber panicked")
)

// NotifyError collects every subscriber failure from one Notify pass.
// Failing subscribers do not prevent later ones from running.
type NotifyError struct {
	Slice    string
	Failures []error
}

func (e *NotifyError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, err := range e.Failures {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("notify %s: %d subscriber(s) failed: %s", e.Slice, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *NotifyError) Unwrap() []error {
	return e.Failures
}
