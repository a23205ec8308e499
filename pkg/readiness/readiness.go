// Package readiness implements a minimal health-checking mechanism for use as k8s readiness probes. A component
// stays ready once it has been marked ready; it is not meant for monitoring.
package readiness

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

type Component string

const (
	ComponentStore     Component = "store"
	ComponentGenesis   Component = "genesis"
	ComponentPublicWeb Component = "publicweb"
)

// Registry tracks the components that must be ready before the node reports ready.
type Registry struct {
	mu         sync.Mutex
	components map[Component]bool
}

func NewRegistry() *Registry {
	return &Registry{components: map[Component]bool{}}
}

// RegisterComponent registers the given component name such that it is required to be ready for the check to succeed.
func (r *Registry) RegisterComponent(component Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.components[component]; ok {
		return fmt.Errorf("component %s already registered", component)
	}
	r.components[component] = false
	return nil
}

// SetReady sets the given component state. Unregistered components are registered as ready.
func (r *Registry) SetReady(component Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[component] = true
}

func (r *Registry) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.components {
		if !v {
			return false
		}
	}
	return true
}

// Handler returns 200 OK if all components are ready, or 412 Precondition Failed otherwise. For operator
// convenience, a list of components and their states is returned as plain text (not meant for machine consumption!).
func (r *Registry) Handler(w http.ResponseWriter, _ *http.Request) {
	resp := new(bytes.Buffer)
	resp.WriteString("[not suitable for monitoring - do not parse]\n\n")

	r.mu.Lock()
	names := make([]string, 0, len(r.components))
	for k := range r.components {
		names = append(names, string(k))
	}
	sort.Strings(names)

	ready := true
	for _, k := range names {
		v := r.components[Component(k)]
		fmt.Fprintf(resp, "%s\t%v\n", k, v)
		if !v {
			ready = false
		}
	}
	r.mu.Unlock()

	if !ready {
		w.WriteHeader(http.StatusPreconditionFailed)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_, _ = resp.WriteTo(w)
}
