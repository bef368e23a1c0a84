// Package worker abstracts the per-domain search backends. A worker takes a
// planned task and returns normalized result items; how it finds them (a
// subprocess driving a browser, a plain HTTP API, a stub) is its business.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripweaver/tripweaver/internal/travel"
)

// ErrBlocked marks a terminal failure such as a CAPTCHA wall or revoked
// API access. Retrying a blocked search does not help.
var ErrBlocked = errors.New("worker blocked")

// ErrInvalidResponse marks output that could not be parsed into items.
var ErrInvalidResponse = errors.New("invalid worker response")

// Worker runs one search task and returns normalized items.
type Worker interface {
	Search(ctx context.Context, task travel.Task) ([]travel.Item, error)
}

// Func adapts a plain function to the Worker interface.
type Func func(ctx context.Context, task travel.Task) ([]travel.Item, error)

// Search calls f.
func (f Func) Search(ctx context.Context, task travel.Task) ([]travel.Item, error) {
	return f(ctx, task)
}

// Registry maps domains to their workers.
type Registry struct {
	workers map[travel.Domain]Worker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{workers: make(map[travel.Domain]Worker)}
}

// Register binds a worker to a domain, replacing any previous binding.
func (r *Registry) Register(domain travel.Domain, w Worker) {
	r.workers[domain] = w
}

// Lookup returns the worker for a domain.
func (r *Registry) Lookup(domain travel.Domain) (Worker, error) {
	w, ok := r.workers[domain]
	if !ok {
		return nil, fmt.Errorf("no worker registered for domain %q", domain)
	}
	return w, nil
}

// Domains returns the registered domains.
func (r *Registry) Domains() []travel.Domain {
	out := make([]travel.Domain, 0, len(r.workers))
	for d := range r.workers {
		out = append(out, d)
	}
	return out
}
