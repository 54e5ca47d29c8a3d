package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/askmodel/dispatcher"
	"github.com/effective-security/askmodel/tools"
	"github.com/effective-security/xlog"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/askmodel", "mcp")

// Dispatcher executes tool invocations.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv *dispatcher.Invocation) *dispatcher.Envelope
}

// Server is the MCP server for the tool catalog.
type Server struct {
	server     *mcpserver.MCPServer
	catalog    *tools.Catalog
	dispatcher Dispatcher
}

// NewServer returns MCP server with the tools of the catalog registered
func NewServer(name, version string, catalog *tools.Catalog, d Dispatcher) (*Server, error) {
	if catalog == nil || d == nil {
		return nil, errors.New("catalog and dispatcher are required")
	}

	s := mcpserver.NewMCPServer(name, version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	)

	for _, desc := range catalog.List() {
		tool, err := newTool(desc)
		if err != nil {
			return nil, err
		}
		s.AddTool(tool, toolHandler(desc.Name, d))
	}

	return &Server{
		server:     s,
		catalog:    catalog,
		dispatcher: d,
	}, nil
}

func newTool(desc *tools.Descriptor) (mcplib.Tool, error) {
	schema, err := json.Marshal(desc.InputSchema())
	if err != nil {
		return mcplib.Tool{}, errors.Wrapf(err, "failed to marshal schema for %s", desc.Name)
	}
	return mcplib.NewToolWithRawSchema(desc.Name, desc.Description, schema), nil
}

// toolHandler returns the envelope text as the only content item,
// the host tells a failure by the "Error:" prefix.
func toolHandler(name string, d Dispatcher) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		env := d.Dispatch(ctx, &dispatcher.Invocation{
			ToolName:  name,
			Arguments: req.GetArguments(),
		})
		return mcplib.NewToolResultText(env.Text), nil
	}
}

// HandleMessage processes a single JSON-RPC message and returns the response,
// nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, msg json.RawMessage) mcplib.JSONRPCMessage {
	if resp := s.unknownToolCall(ctx, msg); resp != nil {
		return resp
	}
	return s.server.HandleMessage(ctx, msg)
}

// toolCallMessage is the part of a tools/call request
// needed to route a name that is not registered.
type toolCallMessage struct {
	ID     mcplib.RequestId `json:"id"`
	Method string           `json:"method"`
	Params struct {
		Name      string `json:"name"`
		Arguments any    `json:"arguments"`
	} `json:"params"`
}

// unknownToolCall answers a tools/call for a name outside the catalog
// with the dispatcher envelope, and returns nil for any other message.
func (s *Server) unknownToolCall(ctx context.Context, msg json.RawMessage) mcplib.JSONRPCMessage {
	var req toolCallMessage
	if err := json.Unmarshal(msg, &req); err != nil {
		return nil
	}
	if req.Method != string(mcplib.MethodToolsCall) || req.ID.IsNil() {
		return nil
	}
	if _, ok := s.catalog.Get(req.Params.Name); ok {
		return nil
	}

	args, _ := req.Params.Arguments.(map[string]any)
	env := s.dispatcher.Dispatch(ctx, &dispatcher.Invocation{
		ToolName:  req.Params.Name,
		Arguments: args,
	})
	return mcplib.JSONRPCResponse{
		JSONRPC: mcplib.JSONRPC_VERSION,
		ID:      req.ID,
		Result:  mcplib.NewToolResultText(env.Text),
	}
}

// ServeStdio serves the newline delimited JSON-RPC messages from in,
// writing responses to out, until ctx is done or in is closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	logger.KV(xlog.INFO, "status", "serving", "transport", "stdio")

	reader := bufio.NewReader(in)
	for {
		line, err := readLine(ctx, reader)
		if strings.TrimSpace(line) != "" {
			if werr := s.serveLine(ctx, line, out); werr != nil {
				return errors.Wrap(werr, "stdio transport failed")
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				break
			}
			return errors.Wrap(err, "stdio transport failed")
		}
	}

	logger.KV(xlog.INFO, "status", "stopped", "transport", "stdio")
	return nil
}

func (s *Server) serveLine(ctx context.Context, line string, out io.Writer) error {
	var resp mcplib.JSONRPCMessage

	var msg json.RawMessage
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		logger.KV(xlog.WARNING, "status", "parse_error", "err", err.Error())
		resp = mcplib.NewJSONRPCError(mcplib.NewRequestId(nil), mcplib.PARSE_ERROR, "Parse error", nil)
	} else {
		resp = s.HandleMessage(ctx, msg)
	}
	if resp == nil {
		return nil
	}

	js, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "failed to marshal response")
	}
	_, err = fmt.Fprintf(out, "%s\n", js)
	return err
}

// readLine reads one line, returning early with the context error
// when ctx is done before the line is complete.
func readLine(ctx context.Context, reader *bufio.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}
