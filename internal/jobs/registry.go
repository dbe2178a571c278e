package jobs

import "context"

// Handler executes one job. The runner decodes the payload before invoking,
// so implementations type-assert to their variant.
type Handler interface {
	Handle(ctx context.Context, payload Payload, jobID string) error
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, payload Payload, jobID string) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, payload Payload, jobID string) error {
	return f(ctx, payload, jobID)
}

// Registry maps job types to handlers. It is built once at startup and
// passed into the runner; there is no package-level registration.
type Registry struct {
	handlers map[Type]Handler
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Type]Handler)}
}

// Register associates a handler with a job type, replacing any previous one
func (r *Registry) Register(t Type, h Handler) {
	r.handlers[t] = h
}

// Lookup returns the handler for a job type
func (r *Registry) Lookup(t Type) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// Types returns the registered job types
func (r *Registry) Types() []Type {
	types := make([]Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
