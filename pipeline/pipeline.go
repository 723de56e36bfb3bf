// Package pipeline composes the middleware every outbound API request passes
// through: bearer credential attachment, activity refresh and forced logout,
// and bounded retry with exponential backoff.
package pipeline

import (
	"net/http"
)

// Middleware wraps a RoundTripper with additional behaviour.
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain applies mw around base so that mw[0] is the outermost layer.
func Chain(base http.RoundTripper, mw ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	chained := base
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chained = mw[i](chained)
	}
	return chained
}

// Pipeline is an immutable, fully built middleware chain. It is rebuilt
// rather than mutated, so there is never anything to eject.
type Pipeline struct {
	middleware []Middleware
	transport  http.RoundTripper
}

func New(base http.RoundTripper, mw ...Middleware) *Pipeline {
	list := make([]Middleware, len(mw))
	copy(list, mw)
	return &Pipeline{
		middleware: list,
		transport:  Chain(base, list...),
	}
}

func (p *Pipeline) RoundTrip(req *http.Request) (*http.Response, error) {
	return p.transport.RoundTrip(req)
}

// Len is the number of middleware layers in the chain.
func (p *Pipeline) Len() int {
	return len(p.middleware)
}
