// Package mcp implements the Model Context Protocol server for unenki.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/unenki/internal/metrics"
	"github.com/ajitpratap0/unenki/pkg/ansiencode"
)

// Version is reported to MCP clients during initialization.
const Version = "1.0.0"

// Server wraps an MCPServer with the encoder and its default options.
type Server struct {
	mcp      *mcpserver.MCPServer
	encoder  *ansiencode.Encoder
	defaults *ansiencode.Options
	logger   *slog.Logger
}

// NewServer creates a new MCP server. A nil encoder selects the default table.
func NewServer(enc *ansiencode.Encoder, defaults *ansiencode.Options, logger *slog.Logger) *Server {
	if enc == nil {
		enc = ansiencode.New(nil)
	}
	s := &Server{
		encoder:  enc,
		defaults: defaults,
		logger:   logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"unenki",
		Version,
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildEncodeTool(), s.handleEncode)
	mcpSrv.AddTool(buildStripTool(), s.handleStrip)
	mcpSrv.AddTool(buildStripEncodedTool(), s.handleStripEncoded)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleEncode is the exported handler for the "encode" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleEncode(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleEncode(ctx, req)
}

// HandleStrip is the exported handler for the "strip" tool.
func (s *Server) HandleStrip(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStrip(ctx, req)
}

// HandleStripEncoded is the exported handler for the "strip_encoded" tool.
func (s *Server) HandleStripEncoded(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStripEncoded(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// transformResult turns an encoder outcome into a tool result. Invalid
// arguments are reported to the client rather than failing the call.
func (s *Server) transformResult(tool, out string, err error) (*mcpgo.CallToolResult, error) {
	if err != nil {
		if errors.Is(err, ansiencode.ErrInvalidArgument) {
			metrics.Inc(metrics.InvalidArgumentTotal)
			return mcpgo.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("mcp: %s: %w", tool, err)
	}
	s.logger.Debug("mcp: tool call", "tool", tool, "bytes", len(out))
	return toolResultJSON(map[string]any{"result": out})
}

// requestOptions reads the optional keep and force arguments.
func requestOptions(args map[string]any) (*ansiencode.Options, error) {
	opts := &ansiencode.Options{}
	if raw, ok := args["keep"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("keep must be an array of single characters")
		}
		for _, item := range list {
			c, err := singleChar(item)
			if err != nil {
				return nil, fmt.Errorf("keep: %w", err)
			}
			opts.Keep = append(opts.Keep, c)
		}
	}
	if raw, ok := args["force"]; ok && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("force must be an object mapping characters to replacements")
		}
		opts.Force = make(map[rune]string, len(m))
		for k, v := range m {
			c, err := singleChar(k)
			if err != nil {
				return nil, fmt.Errorf("force: %w", err)
			}
			repl, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("force: replacement for %q must be a string", k)
			}
			opts.Force[c] = repl
		}
	}
	return opts, nil
}

func singleChar(v any) (rune, error) {
	s, ok := v.(string)
	if !ok || utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("expected a single character, got %v", v)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// --- tool definitions ---

func buildEncodeTool() mcpgo.Tool {
	return mcpgo.NewTool("encode",
		mcpgo.WithDescription("Replace control and non-ASCII characters with \\uXXXX escapes so ANSI color codes become visible text."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("The raw text to encode"),
		),
		mcpgo.WithArray("keep",
			mcpgo.Description("Characters to emit literally even when they would be escaped"),
			mcpgo.Items(map[string]any{"type": "string"}),
		),
		mcpgo.WithObject("force",
			mcpgo.Description("Map of single characters to the exact replacement to emit"),
		),
	)
}

func buildStripTool() mcpgo.Tool {
	return mcpgo.NewTool("strip",
		mcpgo.WithDescription("Encode raw text and remove its ANSI color codes in one step."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("The raw text to strip"),
		),
	)
}

func buildStripEncodedTool() mcpgo.Tool {
	return mcpgo.NewTool("strip_encoded",
		mcpgo.WithDescription("Remove escaped ANSI color codes such as \\u001b[32m from already-encoded text."),
		mcpgo.WithString("text",
			mcpgo.Required(),
			mcpgo.Description("Text previously produced by encode"),
		),
	)
}

// --- tool handlers ---

// handleEncode encodes text with the configured defaults merged under the
// request's keep and force arguments.
func (s *Server) handleEncode(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args := req.GetArguments()
	opts, err := requestOptions(args)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}

	out, err := s.encoder.EncodeValue(args["text"], s.defaults.Merge(opts))
	if err == nil {
		metrics.Inc(metrics.EncodeTotal)
	}
	return s.transformResult("encode", out, err)
}

// handleStrip encodes text and removes its color codes.
func (s *Server) handleStrip(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	out, err := s.encoder.StripValue(req.GetArguments()["text"])
	if err == nil {
		metrics.Inc(metrics.StripTotal)
	}
	return s.transformResult("strip", out, err)
}

// handleStripEncoded removes escaped color codes from encoded text.
func (s *Server) handleStripEncoded(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	out, err := ansiencode.StripEncodedValue(req.GetArguments()["text"])
	if err == nil {
		metrics.Inc(metrics.StripEncodedTotal)
	}
	return s.transformResult("strip_encoded", out, err)
}
