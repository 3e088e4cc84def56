// Package selection runs the interactive checkpoint between ranking and
// content generation. The user reviews the ranked repositories, picks the
// ones the resume should feature, optionally adds projects the profile does
// not contain, and confirms. A confirmed result is frozen; later stages
// read it, they never change it.
package selection

import (
	"errors"
	"fmt"
)

// ErrAborted reports that the user backed out, either with the explicit
// cancel choice or by interrupting a prompt. Run converts it into an
// aborted outcome rather than a failure.
var ErrAborted = errors.New("selection aborted by user")

// Error represents a failure of the selection step itself, as opposed to
// the user choosing to abort.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}
