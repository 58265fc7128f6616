package channels

import (
	"context"
	"fmt"
)

// Registry maps each Channel to its executor.
type Registry struct {
	executors map[Channel]Executor
}

// RegistryOption configures NewRegistry.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	suppress SuppressFunc
}

// WithSuppression makes the discovery executor drop contact addresses
// for which f reports true.
func WithSuppression(f SuppressFunc) RegistryOption {
	return func(o *registryOptions) { o.suppress = f }
}

// NewRegistry wires every built-in executor over client.
func NewRegistry(client *Client, gh GitHubConfig, email EmailConfig, opts ...RegistryOption) *Registry {
	var o registryOptions
	for _, fn := range opts {
		fn(&o)
	}
	rest := NewREST(client)
	wk := NewWellKnown(client, rest)
	wk.Suppress = o.suppress
	return &Registry{executors: map[Channel]Executor{
		RESTEndpoint:   rest,
		WellKnownCheck: wk,
		A2AProtocol:    NewA2A(client),
		MCPInteraction: NewMCP(client, rest),
		GitHubIssue:    NewGitHub(client, gh),
		WebhookPing:    NewWebhook(rest),
		EmailAPI:       NewEmail(client, email),
	}}
}

// Register replaces the executor for ch.
func (r *Registry) Register(ch Channel, e Executor) {
	r.executors[ch] = e
}

// Get returns the executor for ch.
func (r *Registry) Get(ch Channel) (Executor, error) {
	e, ok := r.executors[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, ch)
	}
	return e, nil
}

// Execute runs the executor for ch. An unknown channel is a failed Result.
func (r *Registry) Execute(ctx context.Context, ch Channel, address string, payload any) Result {
	e, err := r.Get(ch)
	if err != nil {
		return failure(err)
	}
	return e.Execute(ctx, address, payload)
}
