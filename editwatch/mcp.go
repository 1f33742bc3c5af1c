package editwatch

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/storyedit/kit"
)

// RegisterMCP registers the watcher tools on an MCP server.
func (w *Watcher) RegisterMCP(srv *mcp.Server) {
	w.registerSnapshotsTool(srv)
	w.registerCandidateTool(srv)
	w.registerClearCandidateTool(srv)
	w.registerForceCaptureTool(srv)
	w.registerNotifyServerTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func decodeArgs[T any](req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var v T
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &v); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &v}, nil
}

func (w *Watcher) registerTool(srv *mcp.Server, tool *mcp.Tool, ep kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, kit.Chain(kit.Logging(w.logger, tool.Name), instrument(tool.Name))(ep), decode)
}

// --- snapshots ---

func (w *Watcher) registerSnapshotsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editwatch_snapshots",
		Description: "List the recorded snapshots of one origin, oldest first.",
		InputSchema: inputSchema(map[string]any{
			"origin": map[string]any{"type": "string", "enum": []any{"server", "user"}, "description": "Which snapshot log to read"},
		}, []string{"origin"}),
	}
	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := decodeArgs[originRequest](req)
		if err != nil {
			return nil, err
		}
		if err := validOrigin(res.Request.(*originRequest).Origin); err != nil {
			return nil, err
		}
		return res, nil
	}
	w.registerTool(srv, tool, w.snapshotsEndpoint(), decode)
}

// --- candidate ---

func (w *Watcher) registerCandidateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editwatch_candidate",
		Description: "Return the pending candidate artifact (null when nothing is pending).",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	w.registerTool(srv, tool, w.candidateEndpoint(), decodeArgs[struct{}])
}

// --- clear_candidate ---

func (w *Watcher) registerClearCandidateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editwatch_clear_candidate",
		Description: "Acknowledge the pending candidate: the server accepted the request that carried it.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	w.registerTool(srv, tool, w.acknowledgeEndpoint(), decodeArgs[struct{}])
}

// --- force_capture ---

func (w *Watcher) registerForceCaptureTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editwatch_force_capture",
		Description: "Capture a user snapshot now and regenerate the candidate.",
		InputSchema: inputSchema(map[string]any{
			"meta": map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}, "description": "Tags stored with the snapshot (default trigger=manual)"},
		}, nil),
	}
	w.registerTool(srv, tool, w.captureEndpoint(), decodeArgs[captureRequest])
}

// --- notify_server ---

func (w *Watcher) registerNotifyServerTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "editwatch_notify_server",
		Description: "Record that the server just rendered into the given regions, and capture a server snapshot.",
		InputSchema: inputSchema(map[string]any{
			"selectors": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Regions the server wrote"},
		}, nil),
	}
	w.registerTool(srv, tool, w.notifyEndpoint(), decodeArgs[notifyRequest])
}
