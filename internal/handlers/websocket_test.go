package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientAddrPrefersForwardedHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "127.0.0.1:9999"

	assert.Equal(t, "127.0.0.1:9999", clientAddr(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "203.0.113.7", clientAddr(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientAddr(r))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:3000"})

	r := httptest.NewRequest("GET", "/ws", nil)
	// Non-browser clients send no Origin header.
	assert.True(t, check(r))

	r.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, check(r))

	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, check(r))
}

func TestOriginCheckerWildcard(t *testing.T) {
	check := originChecker([]string{"*"})

	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://anywhere.example")
	assert.True(t, check(r))
}

func TestWSClientSendFailsWhenClosed(t *testing.T) {
	c := &wsClient{
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}

	require.NoError(t, c.Send([]byte("one")))

	close(c.done)
	assert.Error(t, c.Send([]byte("two")))
}

func TestWSClientSendFailsWhenBufferFull(t *testing.T) {
	c := &wsClient{
		send: make(chan []byte, 1),
		done: make(chan struct{}),
	}

	require.NoError(t, c.Send([]byte("one")))
	// Nothing drains the buffer; the next send must fail instead of
	// blocking the dispatch path.
	assert.Error(t, c.Send([]byte("two")))
}
