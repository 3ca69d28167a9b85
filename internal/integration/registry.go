package integration

import (
	"fmt"
	"net/http"
	"sort"
	"time"
)

// defaultHTTPTimeout bounds every outbound provider HTTP call.
const defaultHTTPTimeout = 10 * time.Second

// Registry holds the closed set of integrations the gateway can authorize.
// It is read-only after construction; an integration that is named but not
// fully configured is a construction error, not a per-request one — the
// gateway must refuse to advertise an integration it cannot authorize.
type Registry struct {
	descriptors map[string]*Descriptor
	providers   map[string]Provider
}

// NewRegistry validates the descriptors and constructs the provider variant
// for each. client may be nil, in which case a 10s-timeout client is used.
func NewRegistry(descs []*Descriptor, client *http.Client) (*Registry, error) {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	r := &Registry{
		descriptors: make(map[string]*Descriptor, len(descs)),
		providers:   make(map[string]Provider, len(descs)),
	}

	for _, d := range descs {
		if d.Name == "" {
			return nil, fmt.Errorf("integration descriptor missing name")
		}
		if _, dup := r.descriptors[d.Name]; dup {
			return nil, fmt.Errorf("duplicate integration %q", d.Name)
		}
		if d.ClientID == "" || d.ClientSecret == "" {
			return nil, fmt.Errorf("integration %q: client id and secret are required", d.Name)
		}
		if d.RedirectURI == "" {
			return nil, fmt.Errorf("integration %q: redirect URI is required", d.Name)
		}

		var p Provider
		switch d.Name {
		case "slack":
			p = NewSlackProvider(d, client)
		case "google":
			p = NewGoogleProvider(d, client)
		default:
			return nil, fmt.Errorf("no provider implementation for integration %q", d.Name)
		}

		r.descriptors[d.Name] = d
		r.providers[d.Name] = p
	}

	return r, nil
}

// Describe returns the descriptor for a named integration.
func (r *Registry) Describe(name string) (*Descriptor, error) {
	d, ok := r.descriptors[name]
	if !ok {
		return nil, ErrUnknownIntegration
	}
	return d, nil
}

// Provider returns the capability implementation for a named integration.
func (r *Registry) Provider(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownIntegration
	}
	return p, nil
}

// Names lists the registered integrations, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
