package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/harborview/marisk/internal/model"
	"github.com/harborview/marisk/internal/storage"
)

func (s *Server) registerTools() {
	// marisk_verdict — read a stored screening verdict.
	s.mcpServer.AddTool(
		mcplib.NewTool("marisk_verdict",
			mcplib.WithDescription(`Read the stored screening verdict for an operation.

Returns the operation's current verdict: overall status (normal/watch/intercept),
the per-check vessel results, per-role stakeholder classifications, and the
domain projections. Set history=true to get every revision instead, oldest
first, including change-log rows appended by approval reconciliation.

This is a read of the verdict log — it never triggers a new screening.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("uuid",
				mcplib.Description("Operation UUID the screening was filed under"),
				mcplib.Required(),
			),
			mcplib.WithBoolean("history",
				mcplib.Description("Return the full verdict trail instead of only the latest revision"),
			),
		),
		s.handleVerdict,
	)

	// marisk_watchlist — local watchlist register lookup by IMO.
	s.mcpServer.AddTool(
		mcplib.NewTool("marisk_watchlist",
			mcplib.WithDescription(`Look up a vessel on the local watchlist register by IMO number.

Returns the register row (vessel name, listing reason, listed date) when the
vessel is tracked, or a not-found error. This is the same table the
watchlist check consults during screening.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("imo",
				mcplib.Description("7-digit IMO number"),
				mcplib.Required(),
			),
		),
		s.handleWatchlist,
	)

	// marisk_sanctions — local sanctioned-entity register lookup by name.
	s.mcpServer.AddTool(
		mcplib.NewTool("marisk_sanctions",
			mcplib.WithDescription(`Look up a party in the local sanctioned-entity register by name.

Matching uses the same name normalization screening applies (Unicode NFKC,
case folding, whitespace collapse), so minor spelling variants still hit.
Returns the register row with its risk level and flags, or a not-found
error when the party is not listed.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("name",
				mcplib.Description("Party name (company or person) to look up"),
				mcplib.Required(),
			),
		),
		s.handleSanctions,
	)
}

func (s *Server) handleVerdict(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	idStr := request.GetString("uuid", "")
	if idStr == "" {
		return errorResult("uuid is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return errorResult(fmt.Sprintf("invalid uuid: %s", idStr)), nil
	}

	if request.GetBool("history", false) {
		records, err := s.store.VerdictHistory(ctx, id)
		if err != nil {
			return errorResult(fmt.Sprintf("verdict history lookup failed: %v", err)), nil
		}
		if len(records) == 0 {
			return errorResult("no verdicts for operation " + id.String()), nil
		}
		return jsonResult(map[string]any{
			"uuid":      id,
			"revisions": records,
		}), nil
	}

	verdict, err := s.store.LatestVerdict(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResult("no verdict for operation " + id.String()), nil
		}
		return errorResult(fmt.Sprintf("verdict lookup failed: %v", err)), nil
	}
	return jsonResult(verdict), nil
}

func (s *Server) handleWatchlist(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	imo := request.GetString("imo", "")
	if err := model.ValidateIMO(imo); err != nil {
		return errorResult(err.Error()), nil
	}

	vessel, err := s.store.LookupWatchlistVessel(ctx, imo)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResult("vessel not on watchlist: " + imo), nil
		}
		return errorResult(fmt.Sprintf("watchlist lookup failed: %v", err)), nil
	}
	return jsonResult(vessel), nil
}

func (s *Server) handleSanctions(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	name := request.GetString("name", "")
	if name == "" {
		return errorResult("name is required"), nil
	}

	entity, err := s.store.LookupSanctionedEntity(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResult("entity not in sanctions register: " + name), nil
		}
		return errorResult(fmt.Sprintf("sanctions lookup failed: %v", err)), nil
	}
	return jsonResult(entity), nil
}
