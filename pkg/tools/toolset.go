package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Toolset is a group of tools resolved at turn time, typically backed by an
// external server whose tool list is only known after connecting.
type Toolset interface {
	// Name identifies the toolset in logs and name-conflict prefixes.
	Name() string

	// Tools returns the toolset's current definitions with handlers bound.
	Tools(ctx context.Context) ([]Definition, error)

	// Close releases the underlying connection.
	Close() error
}

// Build assembles a registry from fixed definitions followed by every
// toolset's definitions. A toolset tool whose name is already taken is
// registered as "<toolset>_<name>". Toolset tools the registry rejects are
// skipped.
func Build(ctx context.Context, defs []Definition, toolsets []Toolset) (*Registry, error) {
	registry := NewRegistry()

	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return nil, err
		}
	}

	for _, ts := range toolsets {
		tsDefs, err := ts.Tools(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load tools from %s: %w", ts.Name(), err)
		}
		for _, def := range tsDefs {
			if registry.Get(def.Name) != nil {
				def.Name = fmt.Sprintf("%s_%s", ts.Name(), def.Name)
			}
			if def.Source == "" {
				def.Source = ts.Name()
			}
			// One malformed server tool must not hide the rest.
			if err := registry.Register(def); err != nil {
				log.Warn().Str("toolset", ts.Name()).Str("tool", def.Name).Err(err).Msg("Skipping toolset tool")
			}
		}
	}

	return registry, nil
}
