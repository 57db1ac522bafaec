package http

import (
	"context"
	"sync"
)

// RequestGate counts the requests a server is still answering. The zero value is ready to use.
//
// Drain lets shutdown wait for the count to reach zero without polling: the first request
// after an idle period opens a fresh idle channel and the last one to leave closes it.
type RequestGate struct {
	mu   sync.Mutex
	n    int64
	idle chan struct{}
}

// Enter registers a request and returns the func that ends it. Calling the returned func
// more than once has no further effect.
func (g *RequestGate) Enter() (leave func()) {
	g.mu.Lock()
	if g.n == 0 {
		g.idle = make(chan struct{})
	}
	g.n++
	g.mu.Unlock()

	return sync.OnceFunc(func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.n--
		if g.n == 0 {
			close(g.idle)
		}
	})
}

// Count returns the number of requests that have entered and not left.
func (g *RequestGate) Count() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Drain returns nil once no request is open, or ctx.Err() if ctx ends first.
func (g *RequestGate) Drain(ctx context.Context) error {
	g.mu.Lock()
	if g.n == 0 {
		g.mu.Unlock()
		return nil
	}
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requests is entered by MetricsMiddleware for every routed request.
var requests RequestGate

// OpenRequests returns how many routed requests are still being answered.
func OpenRequests() int64 {
	return requests.Count()
}

// DrainRequests waits for every routed request to finish or for ctx to end.
func DrainRequests(ctx context.Context) error {
	return requests.Drain(ctx)
}
