// internal/server/stdio.go
package server

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"mcp-diet-check/internal/version"
)

const instructions = "Dietary safety assistant backed by Open Food Facts. " +
	"Workflow: 1) Use set_user_profile once to store allergies, intolerances, preferences and nutrient limits. " +
	"2) Use search_food_product to see annotated results, or search_safe_food_only to see only SAFE products. " +
	"3) Use get_product_nutrition with a barcode from a search result for details."

// NewMCPServer builds an MCP server exposing every operation of d.
func NewMCPServer(d *Dispatcher) *mcp.Server {
	impl := &mcp.Implementation{
		Name:    "diet-check",
		Version: version.GetVersion(),
	}

	s := mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions})

	for _, spec := range toolSpecs {
		mcp.AddTool(s, &mcp.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: inputSchema(spec),
		}, d.toolHandler(spec.Name))
	}

	return s
}

func (d *Dispatcher) toolHandler(name string) mcp.ToolHandlerFor[map[string]any, any] {
	return func(
		ctx context.Context,
		_ *mcp.ServerSession,
		params *mcp.CallToolParamsFor[map[string]any],
	) (*mcp.CallToolResultFor[any], error) {
		resp := d.Call(ctx, name, params.Arguments)

		return &mcp.CallToolResultFor[any]{
			Content: []mcp.Content{
				&mcp.TextContent{
					Text: resp.Message,
				},
			},
			StructuredContent: resp,
			IsError:           !resp.Success,
		}, nil
	}
}

func inputSchema(spec toolSpec) *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(spec.Properties)),
	}

	names := make([]string, 0, len(spec.Properties))
	for name := range spec.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := spec.Properties[name]
		prop := &jsonschema.Schema{Description: p.Description}
		if len(p.Types) == 1 {
			prop.Type = p.Types[0]
		} else {
			prop.Types = p.Types
		}
		if p.Items != "" {
			prop.Items = &jsonschema.Schema{Type: p.Items}
		}
		schema.Properties[name] = prop
	}

	return schema
}

func (s *DietCheckServer) serveStdio(ctx context.Context) error {
	var t mcp.Transport = mcp.NewStdioTransport()
	// Protocol traffic is mirrored to stderr only when debugging on stderr.
	if s.config.Log.File == "" && strings.EqualFold(s.config.Log.Level, "debug") {
		t = mcp.NewLoggingTransport(t, os.Stderr)
	}

	if err := NewMCPServer(s.dispatcher).Run(ctx, t); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
