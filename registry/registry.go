package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/flokiorg/lngateway/config"
	"github.com/flokiorg/lngateway/lnclient"
	"github.com/flokiorg/lngateway/logger"
)

// Factory builds an adapter from its config. Factories must not perform
// network I/O; connectivity problems surface on first use.
type Factory func(ctx context.Context, cfg config.BackendConfig) (lnclient.LNClient, error)

// Registry holds the constructed adapters and selects the active one.
type Registry struct {
	mu       sync.RWMutex
	active   string
	adapters map[string]lnclient.LNClient
	failures map[string]error
}

func New(active string) *Registry {
	return &Registry{
		active:   active,
		adapters: map[string]lnclient.LNClient{},
		failures: map[string]error{},
	}
}

// Init constructs an adapter for every config with a matching factory.
// Construction failures are recorded, not returned: the registry then
// answers BackendUnavailable for that backend until it is reconfigured.
func (r *Registry) Init(ctx context.Context, configs map[string]config.BackendConfig, factories map[string]Factory) {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := configs[name]
		factory, ok := factories[name]
		if !ok {
			r.RegisterFailure(name, errors.New("no adapter factory registered"))
			continue
		}
		client, err := factory(ctx, cfg)
		if err != nil {
			r.RegisterFailure(name, err)
			continue
		}
		r.Register(name, client)
	}
}

func (r *Registry) Register(name string, client lnclient.LNClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = client
	delete(r.failures, name)
	logger.Logger.Info().
		Str("backend", name).
		Str("capabilities", client.Capabilities().String()).
		Msg("Registered backend adapter")
}

func (r *Registry) RegisterFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, name)
	r.failures[name] = err
	logger.Logger.Error().Err(err).Str("backend", name).Msg("Backend adapter failed to initialize")
}

// Resolve returns the active adapter.
func (r *Registry) Resolve() (lnclient.LNClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(r.active)
}

func (r *Registry) ResolveName(name string) (lnclient.LNClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(name)
}

// ResolveCapable returns the active adapter if it supports every capability
// in caps.
func (r *Registry) ResolveCapable(caps lnclient.Capability) (lnclient.LNClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, err := r.resolveLocked(r.active)
	if err != nil {
		return nil, err
	}
	if !client.Capabilities().Has(caps) {
		return nil, lnclient.NewNotSupportedError(r.active, caps)
	}
	return client, nil
}

// SetActive switches the active backend. Switching to a backend that failed
// to initialize is allowed; calls then fail with BackendUnavailable.
func (r *Registry) SetActive(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, known := r.adapters[name]
	_, failed := r.failures[name]
	if !known && !failed {
		return lnclient.NewError(lnclient.KindBackendUnavailable, "backend %s is not configured", name)
	}
	logger.Logger.Info().Str("from", r.active).Str("to", name).Msg("Switching active backend")
	r.active = name
	return nil
}

func (r *Registry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Names lists every configured backend, healthy or not.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters)+len(r.failures))
	for name := range r.adapters {
		names = append(names, name)
	}
	for name := range r.failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type BackendStatus struct {
	Name         string `json:"name"`
	Active       bool   `json:"active"`
	Healthy      bool   `json:"healthy"`
	Capabilities string `json:"capabilities,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (r *Registry) Status() []BackendStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := []BackendStatus{}
	for name, client := range r.adapters {
		statuses = append(statuses, BackendStatus{
			Name:         name,
			Active:       name == r.active,
			Healthy:      true,
			Capabilities: client.Capabilities().String(),
		})
	}
	for name, err := range r.failures {
		statuses = append(statuses, BackendStatus{
			Name:   name,
			Active: name == r.active,
			Error:  err.Error(),
		})
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})
	return statuses
}

func (r *Registry) Shutdown() {
	r.mu.Lock()
	adapters := make(map[string]lnclient.LNClient, len(r.adapters))
	for name, client := range r.adapters {
		adapters[name] = client
	}
	r.mu.Unlock()

	for name, client := range adapters {
		if err := client.Shutdown(); err != nil {
			logger.Logger.Error().Err(err).Str("backend", name).Msg("Failed to shut down backend adapter")
		}
	}
}

func (r *Registry) resolveLocked(name string) (lnclient.LNClient, error) {
	if client, ok := r.adapters[name]; ok {
		return client, nil
	}
	if err, ok := r.failures[name]; ok {
		return nil, lnclient.WrapError(lnclient.KindBackendUnavailable, err, "backend %s failed to initialize", name)
	}
	return nil, lnclient.NewError(lnclient.KindBackendUnavailable, "backend %s is not configured", name)
}
