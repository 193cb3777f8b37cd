package server

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/3leaps/jobmon/pkg/jobmon"
)

// WorkFactory builds a runnable work function from a raw JSON payload.
// The typed Definition[T] is converted to a WorkFactory at registration
// time by closing over JSON unmarshal plus the typed handler.
type WorkFactory func(payload []byte) (jobmon.Work, error)

// Definitions maps job kind names to type-erased work factories. It is
// safe for concurrent use.
type Definitions struct {
	mu        sync.RWMutex
	factories map[string]WorkFactory
}

// NewDefinitions creates an empty definition set.
func NewDefinitions() *Definitions {
	return &Definitions{factories: make(map[string]WorkFactory)}
}

// Definition describes one startable job kind: a name plus a typed handler
// invoked with the decoded request payload and the job's monitor.
type Definition[T any] struct {
	Name    string
	Handler func(mon *jobmon.Monitor, params T) any
}

// NewDefinition pairs a kind name with its typed handler.
func NewDefinition[T any](name string, handler func(*jobmon.Monitor, T) any) *Definition[T] {
	return &Definition[T]{Name: name, Handler: handler}
}

// Register registers a typed job definition. The typed handler is wrapped
// in a closure that unmarshals the JSON payload into T before calling it.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func Register[T any](d *Definitions, def *Definition[T]) {
	factory := func(payload []byte) (jobmon.Work, error) {
		var params T
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &params); err != nil {
				return nil, fmt.Errorf("unmarshal payload for job kind %q: %w", def.Name, err)
			}
		}
		return func(mon *jobmon.Monitor) any {
			return def.Handler(mon, params)
		}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.factories[def.Name] = factory
}

// Get returns the factory for the given kind name.
func (d *Definitions) Get(name string) (WorkFactory, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.factories[name]
	return f, ok
}

// Names returns all registered kind names, sorted.
func (d *Definitions) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.factories))
	for name := range d.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
