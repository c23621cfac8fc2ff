package actions

import (
	"errors"
	"fmt"
)

// Kind classifies why an action failed.
type Kind int

const (
	// KindNone is reported for a nil error.
	KindNone Kind = iota
	// KindValidation means the input was malformed; the user can fix it.
	KindValidation
	// KindUnauthorized means no identity was supplied.
	KindUnauthorized
	// KindTaskCompleted means a completed task was edited.
	KindTaskCompleted
	// KindBackend covers every store failure: network, permission, constraint.
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindTaskCompleted:
		return "task_completed"
	case KindBackend:
		return "backend"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Messages shown to users for the fixed kinds.
const (
	MsgTitleEmpty    = "Task title cannot be empty"
	MsgTitleTooLong  = "Task title must be at most 500 characters"
	MsgUnauthorized  = "You must be signed in"
	MsgTaskCompleted = "Task is already completed and cannot be modified"
)

// Error is returned by every action on failure.
type Error struct {
	Op   string // action name, e.g. "create task"
	Kind Kind
	Msg  string // user-facing message for non-backend kinds
	Err  error  // underlying backend error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the text to show the user.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

// KindOf returns the Kind carried by err. Errors that did not come from this
// package are reported as KindBackend.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindBackend
}

// MessageOf returns the user-facing text for err.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
