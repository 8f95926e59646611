package session

import (
	"errors"
	"fmt"
)

var (
	ErrNotOwner     = errors.New("only the submitter can change this item")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrEmptyAnswer  = errors.New("an answer is required")
	ErrWrongBoard   = errors.New("action not available on this board")
)

type Kind int

const (
	// AuthFailure means no usable identity: nothing can be written.
	AuthFailure Kind = iota + 1
	// WriteFailure covers rejected or failed submits, votes, ratings, edits
	// and deletes. Nothing is retried; the view keeps its last snapshot.
	WriteFailure
	// SubscriptionFailure ends a live view.
	SubscriptionFailure
)

func (k Kind) String() string {
	switch k {
	case AuthFailure:
		return "auth failure"
	case WriteFailure:
		return "write failure"
	case SubscriptionFailure:
		return "subscription failure"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error records which session operation failed and how.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of a session error, or zero for other errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
