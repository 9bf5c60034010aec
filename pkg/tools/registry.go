package tools

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Registry is a thread-safe collection of tool definitions keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
}

func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Definition),
	}
}

// Register adds a definition, replacing any previous tool with the same
// name.
func (r *Registry) Register(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[def.Name]; ok {
		log.Warn().Str("tool", def.Name).Msg("replacing registered tool")
	}
	r.tools[def.Name] = def
}

// RegisterFunc wraps fn in a Definition and registers it.
func (r *Registry) RegisterFunc(name, description string, fn interface{}) error {
	def, err := NewDefinitionFromFunc(name, description, fn)
	if err != nil {
		return err
	}
	r.Register(def)
	return nil
}

func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// OpenAITools renders every registered tool in wire format, sorted by name
// so request bodies are deterministic.
func (r *Registry) OpenAITools() []openai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]openai.Tool, 0, len(r.tools))
	for _, name := range r.namesLocked() {
		result = append(result, r.tools[name].OpenAITool())
	}
	return result
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
