package agent

import (
	"errors"
	"fmt"
	"sync"
)

// RegistryEntry pairs an action with extra tags for declarative loading.
type RegistryEntry struct {
	Action *Action
	Tags   []string
}

// Registry is the catalogue of actions an agent may call. Registration order
// is preserved in every listing.
type Registry struct {
	actions map[string]*Action
	order   []string
	mu      sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]*Action),
	}
}

// NewRegistryFrom builds a registry from a declarative list of entries.
func NewRegistryFrom(entries ...RegistryEntry) (*Registry, error) {
	r := NewRegistry()
	for _, entry := range entries {
		if entry.Action == nil {
			return nil, errors.New("registry entry has no action")
		}
		if len(entry.Tags) > 0 {
			entry.Action.Tags = appendUnique(entry.Action.Tags, entry.Tags...)
		}
		if err := r.Register(entry.Action); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an action. Registering a name twice returns a
// DuplicateActionError.
func (r *Registry) Register(action *Action) error {
	if action == nil || action.Name == "" {
		return errors.New("action must have a name")
	}
	if action.Func == nil {
		return fmt.Errorf("action %q has no function", action.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[action.Name]; exists {
		return &DuplicateActionError{Name: action.Name}
	}
	r.actions[action.Name] = action
	r.order = append(r.order, action.Name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(action *Action) {
	if err := r.Register(action); err != nil {
		panic(err)
	}
}

// Lookup returns the named action or an UnknownActionError.
func (r *Registry) Lookup(name string) (*Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	action, ok := r.actions[name]
	if !ok {
		return nil, &UnknownActionError{Name: name}
	}
	return action, nil
}

// List returns the actions carrying at least one of tags, or every action
// when no tags are given.
func (r *Registry) List(tags ...string) []*Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Action, 0, len(r.order))
	for _, name := range r.order {
		action := r.actions[name]
		if len(tags) == 0 || action.HasAnyTag(tags...) {
			result = append(result, action)
		}
	}
	return result
}

// Schemas returns the model-facing schemas of the actions List would return.
func (r *Registry) Schemas(tags ...string) []ActionSchema {
	actions := r.List(tags...)
	schemas := make([]ActionSchema, len(actions))
	for i, action := range actions {
		schemas[i] = action.Schema()
	}
	return schemas
}

// Names returns registered action names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
