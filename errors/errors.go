// Package errors defines the pipeline's error taxonomy: every failure that
// crosses a component boundary carries a Kind tag alongside a readable
// message, so callers can branch on category without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	As     = stderrors.As
	Is     = stderrors.Is
	Unwrap = stderrors.Unwrap
	Join   = stderrors.Join
)

// Kind is the stable category tag attached to pipeline errors.
type Kind string

const (
	KindFetchTimeout      Kind = "FETCH_TIMEOUT"
	KindFetchNetwork      Kind = "FETCH_NETWORK"
	KindFetchHTTP         Kind = "FETCH_HTTP_ERROR"
	KindFetchRender       Kind = "FETCH_RENDER"
	KindSelectorMissing   Kind = "SELECTOR_MISSING"
	KindNumberUnparseable Kind = "CHAPTER_NUMBER_UNPARSEABLE"
	KindCrawlCycle        Kind = "CRAWL_CYCLE_DETECTED"
	KindCrawlLimit        Kind = "CRAWL_LIMIT_REACHED"
	KindQuotaExceeded     Kind = "TRANSLATION_QUOTA_EXCEEDED"
	KindChunkFailed       Kind = "TRANSLATION_CHUNK_FAILED"
	KindStoreIO           Kind = "STORE_IO"
	KindStoreMissing      Kind = "STORE_MISSING"
	KindUnknownSource     Kind = "UNKNOWN_SOURCE"
	KindBundleEmpty       Kind = "BUNDLE_EMPTY"
	KindBundleSelection   Kind = "BUNDLE_SELECTION_INVALID"
)

// Sentinels for the kinds used as flow-control signals.
var (
	ErrStoreMissing  = &Error{Kind: KindStoreMissing, Msg: "artifact not in store"}
	ErrUnknownSource = &Error{Kind: KindUnknownSource, Msg: "no adapter registered for source"}
	ErrBundleEmpty   = &Error{Kind: KindBundleEmpty, Msg: "no chapters could be materialized"}
)

// Error is the structured error type used across the pipeline.
type Error struct {
	Kind   Kind
	Source string // adapter id, when known
	URL    string
	Status int // HTTP status for KindFetchHTTP
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Status != 0 && e.URL != "":
		return fmt.Sprintf("[%s] %s (status %d, url %s)", e.Kind, msg, e.Status, e.URL)
	case e.URL != "":
		return fmt.Sprintf("[%s] %s (url %s)", e.Kind, msg, e.URL)
	case e.Source != "":
		return fmt.Sprintf("[%s] %s (source %s)", e.Kind, msg, e.Source)
	default:
		return fmt.Sprintf("[%s] %s", e.Kind, msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets sentinel comparisons match any error of the same kind, so
// errors.Is(err, ErrStoreMissing) works for every store miss.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a tagged error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap tags an underlying error with a kind, keeping it unwrappable.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind carried by err, or "" when err is untagged.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
