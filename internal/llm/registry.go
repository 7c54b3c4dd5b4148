package llm

import (
	"fmt"
	"sort"
)

// Registry maps provider names to completion clients. It is built once at
// startup and read-only afterwards, safe for concurrent use.
type Registry struct {
	clients     map[string]Client
	defaultName string
}

// NewRegistry creates an empty registry with the given default provider name.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		clients:     make(map[string]Client),
		defaultName: defaultName,
	}
}

// Register adds a client under its provider name.
func (r *Registry) Register(name string, client Client) {
	r.clients[name] = client
}

// Client returns the named client.
func (r *Registry) Client(name string) (Client, error) {
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return client, nil
}

// Default returns the default client.
func (r *Registry) Default() (Client, error) {
	return r.Client(r.defaultName)
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
