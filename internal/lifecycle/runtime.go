package lifecycle

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type named struct {
	Component
	name string
}

// Named labels a component in runtime logs and errors.
func Named(name string, component Component) Component {
	if component == nil {
		return nil
	}
	return named{Component: component, name: name}
}

func nameOf(component Component) string {
	if n, ok := component.(named); ok {
		return n.name
	}
	return fmt.Sprintf("%T", component)
}

// Runtime starts components in order and stops them in reverse.
type Runtime struct {
	components []Component
	started    []Component
}

func NewRuntime(components ...Component) *Runtime {
	return &Runtime{components: components}
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.components = append(r.components, component)
}

func (r *Runtime) Start(ctx context.Context) error {
	started := make([]Component, 0, len(r.components))
	for _, component := range r.components {
		if component == nil {
			continue
		}
		if err := component.Start(ctx); err != nil {
			_ = stopComponents(ctx, started)
			return fmt.Errorf("start component %s: %w", nameOf(component), err)
		}
		getLogEntry().WithField("component", nameOf(component)).Debug("started")
		started = append(started, component)
	}
	r.started = started
	return nil
}

// Stop stops what Start started, or every component when Start never ran.
func (r *Runtime) Stop(ctx context.Context) error {
	components := r.started
	if components == nil {
		components = r.components
	}
	r.started = nil
	return stopComponents(ctx, components)
}

func stopComponents(ctx context.Context, components []Component) error {
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		if component == nil {
			continue
		}
		if err := component.Stop(ctx); err != nil {
			stopErr = errors.Join(stopErr, fmt.Errorf("stop component %s: %w", nameOf(component), err))
			continue
		}
		getLogEntry().WithField("component", nameOf(component)).Debug("stopped")
	}
	return stopErr
}

func getLogEntry() *log.Entry {
	return log.WithField("object", "Runtime")
}
