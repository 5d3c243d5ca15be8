// Package mcp implements the Model Context Protocol surface for marisk.
//
// The MCP server exposes read-only compliance lookups — stored verdicts and
// the local registers — so MCP-compatible AI agents can consult screening
// outcomes during their own reasoning. Screening itself stays on the HTTP
// API: it is a side-effecting operation with idempotency semantics that do
// not map onto tool retry behavior.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harborview/marisk/internal/checks"
	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
)

// Store is the subset of the verdict store the MCP tools read from.
type Store interface {
	LatestVerdict(ctx context.Context, id uuid.UUID) (model.OperationVerdict, error)
	VerdictHistory(ctx context.Context, id uuid.UUID) ([]storage.VerdictRecord, error)
	LookupWatchlistVessel(ctx context.Context, imo string) (storage.WatchlistVessel, error)
	LookupSanctionedEntity(ctx context.Context, name string) (storage.SanctionedEntity, error)
}

// Server wraps the MCP server over the verdict store.
type Server struct {
	mcpServer *mcpserver.MCPServer
	store     Store
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all resources and tools.
func New(store Store, logger *slog.Logger, version string) *Server {
	s := &Server{
		store:  store,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"marisk",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)

	s.registerResources()
	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) registerResources() {
	// marisk://catalog — the check catalog and vertical role schemas.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"marisk://catalog",
			"Check Catalog",
			mcplib.WithResourceDescription("Vessel check catalog and per-vertical role schemas"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCatalog,
	)
}

// handleCatalog serves the static check catalog. The payload is assembled
// per read; the registry is immutable after init so the output never varies.
func (s *Server) handleCatalog(_ context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	type checkInfo struct {
		ID          string   `json:"id"`
		Kind        string   `json:"kind"`
		Category    string   `json:"category"`
		Levels      []string `json:"levels,omitempty"`
		Description string   `json:"description,omitempty"`
		Children    []string `json:"children,omitempty"`
	}

	var vesselChecks []checkInfo
	for _, id := range checks.VesselOrder() {
		d := checks.Catalog(id)
		levels := make([]string, 0, len(d.Levels))
		for _, l := range d.Levels {
			levels = append(levels, l.String())
		}
		vesselChecks = append(vesselChecks, checkInfo{
			ID:          d.ID,
			Kind:        string(d.Kind),
			Category:    string(d.Category),
			Levels:      levels,
			Description: d.Description,
			Children:    d.Children,
		})
	}

	type roleInfo struct {
		Key    string `json:"key"`
		Single bool   `json:"single,omitempty"`
	}
	type verticalInfo struct {
		Vertical       string     `json:"vertical"`
		Roles          []roleInfo `json:"roles"`
		HasCargoOrigin bool       `json:"has_cargo_origin"`
		HasPortCountry bool       `json:"has_port_country"`
	}

	var verticals []verticalInfo
	for _, v := range model.Verticals() {
		spec, err := checks.ForVertical(v)
		if err != nil {
			return nil, fmt.Errorf("mcp: catalog: %w", err)
		}
		roles := make([]roleInfo, 0, len(spec.Roles))
		for _, role := range spec.Roles {
			roles = append(roles, roleInfo{Key: role.Key, Single: role.Single})
		}
		verticals = append(verticals, verticalInfo{
			Vertical:       string(spec.Vertical),
			Roles:          roles,
			HasCargoOrigin: spec.HasCargoOrigin,
			HasPortCountry: spec.HasPortCountry,
		})
	}

	data, err := json.MarshalIndent(map[string]any{
		"vessel_checks": vesselChecks,
		"verticals":     verticals,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal catalog: %w", err)
	}

	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		IsError: true,
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
	}
}

func jsonResult(v any) *mcplib.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}
