package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/bizpulse/internal/analysis"
	"github.com/kalambet/bizpulse/internal/page"
)

// InputURI is the MCP resource holding the business input.
const InputURI = "bizpulse://input"

// NewMCPServer creates an MCP server exposing the dashboard's tools and resources.
func NewMCPServer(d Dashboard, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"bizpulse",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("bizpulse: business analyses (feature priority, feedback, customer journey, market) generated from one stored business description."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("set_input",
			mcp.WithDescription("Store the business description every analysis is generated from."),
			mcp.WithString("text", mcp.Description("Free-text business description"), mcp.Required()),
		),
		mcpSetInput(d),
	)

	s.AddTool(
		mcp.NewTool("analyze",
			mcp.WithDescription("Return the analysis of one kind for the stored business description, generating it if it is not cached."),
			mcp.WithString("kind",
				mcp.Description("Analysis kind"),
				mcp.Required(),
				mcp.Enum(analysis.Names()...),
			),
			mcp.WithString("input", mcp.Description("Optional business description to store before analyzing")),
		),
		mcpAnalyze(d),
	)

	s.AddTool(
		mcp.NewTool("submit",
			mcp.WithDescription("Request a fresh analysis of one kind for the stored business description. A cached result for the same input is returned without a new request."),
			mcp.WithString("kind",
				mcp.Description("Analysis kind"),
				mcp.Required(),
				mcp.Enum(analysis.Names()...),
			),
		),
		mcpSubmit(d),
	)

	s.AddResource(
		mcp.NewResource(
			InputURI,
			"Business Input",
			mcp.WithResourceDescription("The stored business description"),
			mcp.WithMIMEType("text/plain"),
		),
		mcpResourceInput(d),
	)

	return s
}

func mcpSetInput(d Dashboard) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}
		if err := d.SetInput(text); err != nil {
			return mcpError(fmt.Sprintf("failed to store input: %v", err)), nil
		}
		return mcpText("Stored business input"), nil
	}
}

func mcpAnalyze(d Dashboard) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind, err := req.RequireString("kind")
		if err != nil {
			return mcpError("kind is required"), nil
		}
		if _, ok := analysis.Lookup(kind); !ok {
			return mcpError(fmt.Sprintf("unknown kind %q (want one of %s)", kind, strings.Join(analysis.Names(), ", "))), nil
		}

		if input := req.GetString("input", ""); input != "" {
			if err := d.SetInput(input); err != nil {
				return mcpError(fmt.Sprintf("failed to store input: %v", err)), nil
			}
		}

		s, err := d.Open(ctx, kind)
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return snapshotResult(s), nil
	}
}

func mcpSubmit(d Dashboard) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		kind, err := req.RequireString("kind")
		if err != nil {
			return mcpError("kind is required"), nil
		}
		if _, ok := analysis.Lookup(kind); !ok {
			return mcpError(fmt.Sprintf("unknown kind %q (want one of %s)", kind, strings.Join(analysis.Names(), ", "))), nil
		}

		s, err := d.Submit(ctx, kind)
		if err != nil {
			return mcpError(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return snapshotResult(s), nil
	}
}

// snapshotResult renders a page snapshot as a tool result. Pages that show
// nothing are reported as tool errors.
func snapshotResult(s page.Snapshot) *mcp.CallToolResult {
	switch s.State {
	case page.Idle:
		return mcpError("no business input stored; call set_input first")
	case page.Failed:
		return mcpError(s.Error + " " + s.Hint)
	case page.Loading:
		return mcpError("analysis already in progress; try again shortly")
	}

	b, err := json.Marshal(s)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpResourceInput(d Dashboard) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text, err := d.Input()
		if err != nil {
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "text/plain",
				Text:     text,
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
