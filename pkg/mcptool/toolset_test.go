package mcptool

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/harun/agentchat/pkg/tools"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	initErr  error
	listErr  error
	callErr  error
	tools    []mcp.Tool
	result   *mcp.CallToolResult
	calls    []mcp.CallToolRequest
	closed   int
	closeErr error
}

func (c *fakeClient) Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if c.initErr != nil {
		return nil, c.initErr
	}
	result := &mcp.InitializeResult{}
	result.ServerInfo = mcp.Implementation{Name: "everything", Version: "1.0.0"}
	return result, nil
}

func (c *fakeClient) ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return &mcp.ListToolsResult{Tools: c.tools}, nil
}

func (c *fakeClient) CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c.calls = append(c.calls, request)
	if c.callErr != nil {
		return nil, c.callErr
	}
	return c.result, nil
}

func (c *fakeClient) Close() error {
	c.closed++
	return c.closeErr
}

func echoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "echo",
		Description: "Echoes back the input",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"message": map[string]any{"type": "string"},
			},
			Required: []string{"message"},
		},
	}
}

func newTestToolset(t *testing.T, dial Dialer) *Toolset {
	t.Helper()
	ts, err := New(Options{
		Params: ConnectionParams{Command: "npx", Args: []string{"-y", "@modelcontextprotocol/server-everything"}},
		Logger: zerolog.New(io.Discard),
		Dial:   dial,
	})
	require.NoError(t, err)
	return ts
}

func dialer(clients ...*fakeClient) (Dialer, *int) {
	dials := 0
	return func(ctx context.Context, params ConnectionParams, logger zerolog.Logger) (Client, error) {
		if dials >= len(clients) {
			return nil, errors.New("spawn failed")
		}
		c := clients[dials]
		dials++
		return c, nil
	}, &dials
}

func TestConnectionParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		params  ConnectionParams
		wantErr bool
	}{
		{"stdio default transport", ConnectionParams{Command: "npx"}, false},
		{"stdio missing command", ConnectionParams{Transport: TransportStdio}, true},
		{"http", ConnectionParams{Transport: TransportHTTP, URL: "http://localhost:3001/mcp"}, false},
		{"http missing url", ConnectionParams{Transport: TransportHTTP}, true},
		{"unknown transport", ConnectionParams{Transport: "sse", URL: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	ts := newTestToolset(t, nil)
	assert.Equal(t, "mcp", ts.Name())
	assert.Equal(t, TransportStdio, ts.params.Transport)
	assert.Equal(t, defaultTimeout, ts.params.Timeout)
	assert.False(t, ts.Connected())
	assert.Equal(t, "npx -y @modelcontextprotocol/server-everything", ts.params.String())
}

func TestToolset_Connect(t *testing.T) {
	client := &fakeClient{}
	dial, dials := dialer(client)
	ts := newTestToolset(t, dial)

	require.NoError(t, ts.Connect(context.Background()))
	require.NoError(t, ts.Connect(context.Background()))

	assert.True(t, ts.Connected())
	assert.Equal(t, 1, *dials)
	assert.Equal(t, "everything", ts.ServerName())
}

func TestToolset_Connect_HandshakeFailureClosesClient(t *testing.T) {
	client := &fakeClient{initErr: errors.New("bad protocol")}
	dial, _ := dialer(client)
	ts := newTestToolset(t, dial)

	err := ts.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad protocol")
	assert.Equal(t, 1, client.closed)
	assert.False(t, ts.Connected())
}

func TestToolset_Tools(t *testing.T) {
	client := &fakeClient{tools: []mcp.Tool{echoTool()}}
	dial, _ := dialer(client)
	ts := newTestToolset(t, dial)

	defs, err := ts.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "echo", def.Name)
	assert.Equal(t, "Echoes back the input", def.Description)
	assert.Equal(t, "mcp", def.Source)
	assert.Equal(t, "object", def.InputSchema["type"])
	assert.Equal(t, []interface{}{"message"}, def.InputSchema["required"])
	assert.True(t, ts.Connected())
}

func TestToolset_Tools_MissingDescription(t *testing.T) {
	client := &fakeClient{tools: []mcp.Tool{echoTool(), {Name: "ping"}}}
	dial, _ := dialer(client)
	ts := newTestToolset(t, dial)

	clock := tools.Definition{
		Name:        "getCurrentTime",
		Description: "Returns the current local time.",
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return "10:00", nil
		},
	}

	registry, err := tools.Build(context.Background(), []tools.Definition{clock}, []tools.Toolset{ts})
	require.NoError(t, err)

	assert.Equal(t, []string{"echo", "getCurrentTime", "ping"}, registry.Names())
	assert.Equal(t, "MCP tool ping", registry.Get("ping").Description)
}

func TestToolset_Tools_ListFailureDropsConnection(t *testing.T) {
	broken := &fakeClient{listErr: errors.New("broken pipe")}
	healthy := &fakeClient{tools: []mcp.Tool{echoTool()}}
	dial, dials := dialer(broken, healthy)
	ts := newTestToolset(t, dial)

	_, err := ts.Tools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
	assert.False(t, ts.Connected())
	assert.Equal(t, 1, broken.closed)

	defs, err := ts.Tools(context.Background())
	require.NoError(t, err)
	assert.Len(t, defs, 1)
	assert.Equal(t, 2, *dials)
}

func TestToolset_Tools_SpawnFailure(t *testing.T) {
	dial, _ := dialer()
	ts := newTestToolset(t, dial)

	_, err := ts.Tools(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spawn failed")
}

func TestToolset_HandlerCallsServer(t *testing.T) {
	client := &fakeClient{
		tools: []mcp.Tool{echoTool()},
		result: &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "Echo: hi"}},
		},
	}
	dial, _ := dialer(client)
	ts := newTestToolset(t, dial)

	registry, err := tools.Build(context.Background(), nil, []tools.Toolset{ts})
	require.NoError(t, err)

	result := registry.Execute(context.Background(), "echo", map[string]interface{}{"message": "hi"})
	require.True(t, result.Success, result.Error)
	assert.Equal(t, "Echo: hi", result.Output)

	require.Len(t, client.calls, 1)
	assert.Equal(t, "echo", client.calls[0].Params.Name)
	assert.Equal(t, map[string]interface{}{"message": "hi"}, client.calls[0].Params.Arguments)
}

func TestToolset_CallTool_ErrorResult(t *testing.T) {
	client := &fakeClient{
		result: &mcp.CallToolResult{
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "unknown resource"}},
			IsError: true,
		},
	}
	dial, _ := dialer(client)
	ts := newTestToolset(t, dial)
	require.NoError(t, ts.Connect(context.Background()))

	_, err := ts.CallTool(context.Background(), "getResource", nil)
	require.Error(t, err)
	assert.Equal(t, "unknown resource", err.Error())
}

func TestToolset_CallTool_NotConnected(t *testing.T) {
	ts := newTestToolset(t, nil)

	_, err := ts.CallTool(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestToolset_Close(t *testing.T) {
	client := &fakeClient{}
	dial, _ := dialer(client)
	ts := newTestToolset(t, dial)
	require.NoError(t, ts.Connect(context.Background()))

	require.NoError(t, ts.Close())
	require.NoError(t, ts.Close())
	assert.Equal(t, 1, client.closed)
	assert.False(t, ts.Connected())

	_, err := ts.Tools(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = ts.CallTool(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestToolset_Close_Error(t *testing.T) {
	client := &fakeClient{closeErr: errors.New("process already exited")}
	dial, _ := dialer(client)
	ts := newTestToolset(t, dial)
	require.NoError(t, ts.Connect(context.Background()))

	err := ts.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process already exited")
}

func TestInputSchema_Raw(t *testing.T) {
	tool := mcp.Tool{
		Name:           "add",
		RawInputSchema: json.RawMessage(`{"type":"object","properties":{"a":{"type":"number"}},"required":["a"]}`),
	}

	schema, err := InputSchema(tool)
	require.NoError(t, err)
	assert.Equal(t, "object", schema["type"])
	assert.Contains(t, schema["properties"], "a")
}

func TestInputSchema_Empty(t *testing.T) {
	schema, err := InputSchema(mcp.Tool{Name: "printEnv"})
	require.NoError(t, err)
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, map[string]interface{}{}, schema["properties"])
}

func TestResultText(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "first"},
			mcp.ImageContent{Type: "image", Data: "AAAA", MIMEType: "image/png"},
			mcp.TextContent{Type: "text", Text: "second"},
		},
	}

	assert.Equal(t, "first\n[image image/png]\nsecond", ResultText(result))
	assert.Equal(t, "", ResultText(nil))
}
