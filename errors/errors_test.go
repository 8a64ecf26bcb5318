package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatchesByKind(t *testing.T) {
	t.Parallel()

	// Any store miss should satisfy errors.Is against the sentinel, even
	// when the concrete error carries its own message and URL.
	miss := &Error{Kind: KindStoreMissing, Msg: "chapter 3 not stored", URL: "https://example.com/c/3"}
	assert.True(t, Is(miss, ErrStoreMissing))
	assert.False(t, Is(miss, ErrUnknownSource))

	// Wrapping keeps the match working through the chain.
	wrapped := fmt.Errorf("while bundling: %w", miss)
	assert.True(t, Is(wrapped, ErrStoreMissing))
}

func TestKindOf(t *testing.T) {
	t.Parallel()

	err := New(KindFetchHTTP, "bad status %d", 502)
	assert.Equal(t, KindFetchHTTP, KindOf(err))
	assert.True(t, IsKind(err, KindFetchHTTP))
	assert.False(t, IsKind(err, KindFetchTimeout))

	// Untagged errors report the empty kind.
	assert.Equal(t, Kind(""), KindOf(fmt.Errorf("plain")))

	// The kind survives plain fmt wrapping.
	assert.Equal(t, KindFetchHTTP, KindOf(fmt.Errorf("outer: %w", err)))
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("connection refused")
	err := Wrap(KindFetchNetwork, cause, "fetching %s", "https://example.com")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, Unwrap(err))
	assert.Equal(t, KindFetchNetwork, KindOf(err))
}

func TestErrorStringIncludesContext(t *testing.T) {
	t.Parallel()

	err := &Error{Kind: KindFetchHTTP, Msg: "server error", Status: 503, URL: "https://example.com/x"}
	assert.Equal(t, "[FETCH_HTTP_ERROR] server error (status 503, url https://example.com/x)", err.Error())

	// Without a message the cause's text is used.
	err = &Error{Kind: KindStoreIO, Err: fmt.Errorf("disk full")}
	assert.Equal(t, "[STORE_IO] disk full", err.Error())

	err = &Error{Kind: KindSelectorMissing, Msg: "no title", Source: "novelbin"}
	assert.Equal(t, "[SELECTOR_MISSING] no title (source novelbin)", err.Error())
}
