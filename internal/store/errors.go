package store

import "errors"

// Kind classifies a storage failure so callers can map it to the error
// kinds of spec.md §4.B / §7 without parsing message text.
type Kind int

// Recognized storage error kinds.
const (
	KindNone Kind = iota
	KindConflict
	KindNotFound
	KindConstraint
	KindIO
)

// Error wraps a storage failure with its Kind. The zero Error (nil) means
// success; storage operations never panic the process on data errors.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return "store: unspecified error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError constructs a classified storage error.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// ErrConflict is a sentinel matched with errors.Is for unique-constraint
// violations, e.g. "username exists".
var ErrConflict = errors.New("store: conflict")

// ErrNotFound is a sentinel matched with errors.Is for missing rows.
var ErrNotFound = errors.New("store: not found")

// Conflict builds a Kind=KindConflict error wrapping ErrConflict so
// errors.Is(err, store.ErrConflict) works regardless of backend.
func Conflict(detail string) *Error {
	return NewError(KindConflict, wrapSentinel(ErrConflict, detail))
}

// NotFound builds a Kind=KindNotFound error wrapping ErrNotFound.
func NotFound(detail string) *Error {
	return NewError(KindNotFound, wrapSentinel(ErrNotFound, detail))
}

type sentinelWrap struct {
	sentinel error
	detail   string
}

func (w *sentinelWrap) Error() string {
	if w.detail == "" {
		return w.sentinel.Error()
	}
	return w.sentinel.Error() + ": " + w.detail
}

func (w *sentinelWrap) Unwrap() error { return w.sentinel }

func wrapSentinel(sentinel error, detail string) error {
	return &sentinelWrap{sentinel: sentinel, detail: detail}
}

// IsConflict reports whether err is a storage conflict (e.g. duplicate
// username).
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports whether err is a storage not-found result.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
