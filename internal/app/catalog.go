package app

import (
	"context"
	"fmt"
	"io"

	"github.com/harun/agentchat/internal/config"
	"github.com/harun/agentchat/pkg/coretools"
	"github.com/harun/agentchat/pkg/tools"
)

// ListTools connects to the configured MCP server, if any, and returns every
// tool the agent would see on its next turn. No credential is needed.
func ListTools(ctx context.Context, cfg *config.Config, opts Options) ([]*tools.Definition, error) {
	opts.setDefaults()

	log, err := NewLogger(cfg, opts.Stderr)
	if err != nil {
		return nil, err
	}
	defer log.Close()

	toolset, err := newToolset(cfg.MCP, opts.Dial, log)
	if err != nil {
		return nil, err
	}

	var toolsets []tools.Toolset
	if toolset != nil {
		defer func() {
			if err := toolset.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close MCP toolset")
			}
		}()
		toolsets = append(toolsets, toolset)
	}

	registry, err := tools.Build(ctx, coretools.Definitions(coretools.Options{Now: opts.Now}), toolsets)
	if err != nil {
		return nil, err
	}
	return registry.Definitions(), nil
}

// PrintTools writes one line per tool: name, source and description.
func PrintTools(w io.Writer, defs []*tools.Definition) {
	for _, def := range defs {
		fmt.Fprintf(w, "%-28s %-6s %s\n", def.Name, def.Source, def.Description)
	}
}
