// Package profiles holds the model/endpoint configuration used to route
// chat requests. An Endpoint is a concurrency-limited base URL; a Profile
// binds a model name and API key to an endpoint, tagged with the capability
// it is good at so callers can ask for "a tool-use model" without knowing
// deployment details.
package profiles

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/burattino/pkg/gate"
)

// Capability tags what a profile is provisioned for.
type Capability string

const (
	CapabilityChat        Capability = "chat"
	CapabilityThink       Capability = "think"
	CapabilityToolUse     Capability = "tool-use"
	CapabilityLongContext Capability = "long-context"
)

var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrEndpointNotFound = errors.New("endpoint not found")
)

type Endpoint struct {
	Name        string `yaml:"name"`
	BaseURL     string `yaml:"base_url"`
	Parallelism int64  `yaml:"parallelism"`
}

type Profile struct {
	Name       string     `yaml:"name"`
	Model      string     `yaml:"model"`
	Capability Capability `yaml:"capability"`
	Endpoint   string     `yaml:"endpoint"`
	APIKey     string     `yaml:"api_key"`
}

type profileKey struct {
	name       string
	capability Capability
}

// Registry is the in-memory profile store. Adding an endpoint also
// registers its concurrency gate, so a profile resolved from the registry
// is always backed by a working permit source.
type Registry struct {
	mu        sync.RWMutex
	gate      *gate.Gate
	endpoints map[string]Endpoint
	profiles  map[profileKey]Profile
}

func NewRegistry(g *gate.Gate) *Registry {
	return &Registry{
		gate:      g,
		endpoints: make(map[string]Endpoint),
		profiles:  make(map[profileKey]Profile),
	}
}

func (r *Registry) Gate() *gate.Gate {
	return r.gate
}

func (r *Registry) AddEndpoint(ep Endpoint) {
	r.mu.Lock()
	r.endpoints[ep.Name] = ep
	r.mu.Unlock()

	r.gate.Register(ep.BaseURL, ep.Parallelism)
	log.Debug().Str("endpoint", ep.Name).Str("base_url", ep.BaseURL).
		Int64("parallelism", ep.Parallelism).Msg("added endpoint")
}

// AddProfile registers a profile under both its name and its capability, so
// it can be looked up either way. The endpoint must already be registered.
func (r *Registry) AddProfile(p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.endpoints[p.Endpoint]; !ok {
		return errors.Wrapf(ErrEndpointNotFound, "%s (required by profile %s)", p.Endpoint, p.Name)
	}
	r.profiles[profileKey{name: p.Name}] = p
	if p.Capability != "" {
		r.profiles[profileKey{capability: p.Capability}] = p
	}
	return nil
}

func (r *Registry) ByName(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[profileKey{name: name}]
	if !ok {
		return Profile{}, errors.Wrapf(ErrProfileNotFound, "name %s", name)
	}
	return p, nil
}

func (r *Registry) ByCapability(c Capability) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[profileKey{capability: c}]
	if !ok {
		return Profile{}, errors.Wrapf(ErrProfileNotFound, "capability %s", c)
	}
	return p, nil
}

func (r *Registry) EndpointOf(p Profile) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[p.Endpoint]
	if !ok {
		return Endpoint{}, errors.Wrapf(ErrEndpointNotFound, "%s", p.Endpoint)
	}
	return ep, nil
}
