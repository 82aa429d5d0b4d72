package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/guillermoBallester/querytrail/internal/core/domain"
	"github.com/guillermoBallester/querytrail/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "querytrail"

// DefaultLimit caps query_history results when no limit is given.
const DefaultLimit = 50

// Tool descriptions
const (
	descQueryHistory = "List recorded SQL statements from the query log, newest first. " +
		"Each record has the raw statement, its SHA-256 hash, rendered parameter values, " +
		"the caller's host name and address, the timestamp, and the interception source " +
		"(cursor, cursor_bulk, bulk_api, bulk_api_bulk). " +
		"Narrow results with range, type, caller and source before raising the limit."

	descQueryStats = "Summarise the query log: total statements, statements per hour, unique callers, " +
		"distribution by statement type and by source, the most frequent statements, and counts per caller. " +
		"Accepts the same filters as query_history."

	descGetRecord = "Fetch a single query record by its id."

	descRange  = "Time window ending now: 1h, 24h, 7d, all, or any Go duration such as 90m. Defaults to all."
	descType   = "Statement type: SELECT, INSERT, UPDATE, DELETE, CREATE, OTHER or ALL. Defaults to ALL."
	descCaller = "Only records from this caller host name"
	descSource = "Only records from this interception source: cursor, cursor_bulk, bulk_api, bulk_api_bulk"
	descLimit  = "Maximum number of records to return. Defaults to 50."
	descWhere  = "Raw SQLite predicate over query_log columns, AND-ed with the other filters. Not validated."
)

// ToolOptions controls what the tools expose.
type ToolOptions struct {
	// AllowRawFilter exposes the `where` argument, which is passed to the
	// store verbatim.
	AllowRawFilter bool
}

func RegisterTools(s *server.MCPServer, history *service.HistoryService, opts ToolOptions) {
	s.AddTool(
		mcp.NewTool("query_history", filterOptions(opts,
			mcp.WithDescription(descQueryHistory),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithNumber("limit",
				mcp.Description(descLimit),
			),
		)...),
		queryHistoryHandler(history, opts),
	)

	s.AddTool(
		mcp.NewTool("query_stats", filterOptions(opts,
			mcp.WithDescription(descQueryStats),
			mcp.WithReadOnlyHintAnnotation(true),
		)...),
		queryStatsHandler(history, opts),
	)

	s.AddTool(
		mcp.NewTool("get_record",
			mcp.WithDescription(descGetRecord),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithNumber("id",
				mcp.Required(),
				mcp.Description("Record id"),
			),
		),
		getRecordHandler(history),
	)
}

// filterOptions appends the shared filter arguments to a tool definition.
func filterOptions(opts ToolOptions, base ...mcp.ToolOption) []mcp.ToolOption {
	base = append(base,
		mcp.WithString("range", mcp.Description(descRange)),
		mcp.WithString("type", mcp.Description(descType)),
		mcp.WithString("caller", mcp.Description(descCaller)),
		mcp.WithString("source", mcp.Description(descSource)),
	)
	if opts.AllowRawFilter {
		base = append(base, mcp.WithString("where", mcp.Description(descWhere)))
	}
	return base
}

// parseHistoryQuery reads the shared filter arguments.
func parseHistoryQuery(args map[string]any, opts ToolOptions) (domain.HistoryQuery, error) {
	var q domain.HistoryQuery

	rangeArg, _ := args["range"].(string)
	r, err := domain.ParseTimeRange(rangeArg)
	if err != nil {
		return q, err
	}
	q.Range = r

	typeArg, _ := args["type"].(string)
	typ, err := domain.ParseStatementType(typeArg)
	if err != nil {
		return q, err
	}
	q.Type = typ

	q.Caller, _ = args["caller"].(string)

	if s, _ := args["source"].(string); s != "" {
		src, err := domain.ParseSource(s)
		if err != nil {
			return q, err
		}
		q.Source = src
	}

	if w, _ := args["where"].(string); w != "" {
		if !opts.AllowRawFilter {
			return q, errors.New("the where argument is disabled on this server")
		}
		q.Where = w
	}

	return q, nil
}

func queryHistoryHandler(history *service.HistoryService, opts ToolOptions) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := parseHistoryQuery(request.GetArguments(), opts)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		q.Limit = DefaultLimit
		if v, ok := request.GetArguments()["limit"].(float64); ok {
			if v < 1 {
				return mcp.NewToolResultError("limit must be a positive integer"), nil
			}
			q.Limit = int(v)
		}

		records, err := history.Search(ctx, q)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read history: %v", err)), nil
		}

		data, err := json.Marshal(records)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func queryStatsHandler(history *service.HistoryService, opts ToolOptions) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, err := parseHistoryQuery(request.GetArguments(), opts)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		stats, err := history.Stats(ctx, q)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to compute stats: %v", err)), nil
		}

		data, err := json.Marshal(stats)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}

func getRecordHandler(history *service.HistoryService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, ok := request.GetArguments()["id"].(float64)
		if !ok || id < 1 || id != float64(int64(id)) {
			return mcp.NewToolResultError("id must be a positive integer"), nil
		}

		rec, err := history.Get(ctx, int64(id))
		if errors.Is(err, domain.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("record %d not found", int64(id))), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get record: %v", err)), nil
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}
