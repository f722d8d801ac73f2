package mcptool

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/harun/agentchat/pkg/tools"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConnected is returned when a tool is called without a live connection.
	ErrNotConnected = errors.New("mcp server not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("mcp toolset closed")
)

// Transports
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

const (
	protocolVersion = "2024-11-05"
	defaultTimeout  = 30 * time.Second
)

// ConnectionParams describes how to reach the server.
type ConnectionParams struct {
	Transport string

	// stdio
	Command string
	Args    []string
	Env     []string

	// http
	URL string

	// Timeout bounds the handshake and each tool listing.
	Timeout time.Duration
}

// Validate checks the params for the selected transport.
func (p ConnectionParams) Validate() error {
	switch p.Transport {
	case "", TransportStdio:
		if strings.TrimSpace(p.Command) == "" {
			return fmt.Errorf("stdio transport requires a command")
		}
	case TransportHTTP:
		if strings.TrimSpace(p.URL) == "" {
			return fmt.Errorf("http transport requires a url")
		}
	default:
		return fmt.Errorf("unsupported transport: %s", p.Transport)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}

func (p ConnectionParams) String() string {
	if p.Transport == TransportHTTP {
		return p.URL
	}
	return strings.TrimSpace(p.Command + " " + strings.Join(p.Args, " "))
}

// Client is the subset of the MCP client used by the toolset.
type Client interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer opens a client for params. The toolset performs the handshake.
type Dialer func(ctx context.Context, params ConnectionParams, logger zerolog.Logger) (Client, error)

// Options configures a Toolset.
type Options struct {
	// Name prefixes conflicting tool names and tags tool sources. Defaults to "mcp".
	Name   string
	Params ConnectionParams
	Logger zerolog.Logger

	// Dial defaults to the mcp-go stdio or streamable HTTP client.
	Dial Dialer
}

// Toolset is a connection to one MCP server.
type Toolset struct {
	name   string
	params ConnectionParams
	dial   Dialer
	logger zerolog.Logger

	mu     sync.Mutex
	client Client
	server string
	closed bool
}

// New creates a toolset. It does not connect.
func New(opts Options) (*Toolset, error) {
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mcp connection params: %w", err)
	}

	name := opts.Name
	if name == "" {
		name = "mcp"
	}
	if opts.Params.Transport == "" {
		opts.Params.Transport = TransportStdio
	}
	if opts.Params.Timeout == 0 {
		opts.Params.Timeout = defaultTimeout
	}

	dial := opts.Dial
	if dial == nil {
		dial = Dial
	}

	return &Toolset{
		name:   name,
		params: opts.Params,
		dial:   dial,
		logger: opts.Logger.With().Str("toolset", name).Logger(),
	}, nil
}

// Name returns the toolset name
func (t *Toolset) Name() string {
	return t.name
}

// ServerName is the name the server reported during the handshake.
func (t *Toolset) ServerName() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.server
}

// Connected reports whether a connection is open.
func (t *Toolset) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil
}

// Connect opens the connection and performs the MCP handshake. It is a no-op
// when already connected.
func (t *Toolset) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.connectLocked(ctx)
	return err
}

func (t *Toolset) connectLocked(ctx context.Context) (Client, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if t.client != nil {
		return t.client, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.params.Timeout)
	defer cancel()

	t.logger.Debug().Str("server", t.params.String()).Str("transport", t.params.Transport).Msg("Connecting to MCP server")

	c, err := t.dial(ctx, t.params, t.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start mcp client for %s: %w", t.params, err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = protocolVersion
	req.Params.ClientInfo = mcp.Implementation{
		Name:    "agentchat",
		Version: "1.0.0",
	}
	req.Params.Capabilities = mcp.ClientCapabilities{}

	result, err := c.Initialize(ctx, req)
	if err != nil {
		if closeErr := c.Close(); closeErr != nil {
			t.logger.Debug().Err(closeErr).Msg("Failed to close MCP client after handshake error")
		}
		return nil, fmt.Errorf("mcp initialization failed: %w", err)
	}

	t.client = c
	if result != nil {
		t.server = result.ServerInfo.Name
	}

	t.logger.Info().Str("server_name", t.server).Msg("Connected to MCP server")
	return c, nil
}

// Tools lists the server's tools, connecting first if needed.
func (t *Toolset) Tools(ctx context.Context) ([]tools.Definition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, err := t.connectLocked(ctx)
	if err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, t.params.Timeout)
	defer cancel()

	result, err := c.ListTools(listCtx, mcp.ListToolsRequest{})
	if err != nil {
		t.dropLocked()
		return nil, fmt.Errorf("failed to list mcp tools: %w", err)
	}

	defs := make([]tools.Definition, 0, len(result.Tools))
	for _, tool := range result.Tools {
		def, err := t.definition(tool)
		if err != nil {
			t.logger.Warn().Str("tool", tool.Name).Err(err).Msg("Skipping MCP tool")
			continue
		}
		defs = append(defs, def)
	}

	t.logger.Debug().Int("count", len(defs)).Msg("Listed MCP tools")
	return defs, nil
}

// CallTool invokes a tool on the server and flattens its content to text.
func (t *Toolset) CallTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	t.mu.Lock()
	c := t.client
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if c == nil {
		return nil, ErrNotConnected
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp tool %s failed: %w", name, err)
	}

	text := ResultText(result)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return nil, errors.New(text)
	}
	return text, nil
}

// Close shuts the connection down. For stdio servers this stops the child
// process.
func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.client == nil {
		return nil
	}
	c := t.client
	t.client = nil

	if err := c.Close(); err != nil {
		return fmt.Errorf("failed to close mcp client: %w", err)
	}
	t.logger.Debug().Msg("MCP connection closed")
	return nil
}

func (t *Toolset) dropLocked() {
	if t.client == nil {
		return
	}
	if err := t.client.Close(); err != nil {
		t.logger.Debug().Err(err).Msg("Failed to close dropped MCP client")
	}
	t.client = nil
	t.logger.Warn().Msg("MCP connection dropped, will reconnect on next use")
}

func (t *Toolset) definition(tool mcp.Tool) (tools.Definition, error) {
	schema, err := InputSchema(tool)
	if err != nil {
		return tools.Definition{}, err
	}

	name := tool.Name

	// description is optional in MCP
	description := strings.TrimSpace(tool.Description)
	if description == "" {
		description = fmt.Sprintf("MCP tool %s", name)
	}

	return tools.Definition{
		Name:        name,
		Description: description,
		InputSchema: schema,
		Source:      t.name,
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return t.CallTool(ctx, name, args)
		},
	}, nil
}

// InputSchema returns the tool's parameter schema as a generic map.
func InputSchema(tool mcp.Tool) (map[string]interface{}, error) {
	var raw []byte
	if len(tool.RawInputSchema) > 0 {
		raw = tool.RawInputSchema
	} else {
		data, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to encode input schema: %w", err)
		}
		raw = data
	}

	schema := map[string]interface{}{}
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("failed to decode input schema: %w", err)
	}
	if typ, _ := schema["type"].(string); typ == "" {
		schema["type"] = "object"
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]interface{}{}
	}
	return schema, nil
}

// ResultText joins the text content of a tool result. Non-text content is
// summarized.
func ResultText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	parts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		switch c := content.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s]", c.MIMEType))
		case mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio %s]", c.MIMEType))
		case mcp.EmbeddedResource:
			parts = append(parts, "[embedded resource]")
		default:
			data, err := json.Marshal(content)
			if err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Dial opens an mcp-go client for params. Stdio servers are started at once;
// their stderr is forwarded to the debug log.
func Dial(ctx context.Context, params ConnectionParams, logger zerolog.Logger) (Client, error) {
	switch params.Transport {
	case TransportHTTP:
		httpClient, err := client.NewStreamableHttpClient(params.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to create streamable-http client: %w", err)
		}
		if err := httpClient.Start(ctx); err != nil {
			httpClient.Close()
			return nil, fmt.Errorf("failed to start streamable-http client: %w", err)
		}
		return httpClient, nil

	default:
		stdioClient, err := client.NewStdioMCPClient(params.Command, params.Env, params.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to start %s: %w", params.Command, err)
		}
		if stderr, ok := client.GetStderr(stdioClient); ok {
			go func() {
				scanner := bufio.NewScanner(stderr)
				for scanner.Scan() {
					logger.Debug().Str("stream", "stderr").Msg(scanner.Text())
				}
				// Keep the pipe drained past an oversized line.
				_, _ = io.Copy(io.Discard, stderr)
			}()
		}
		return stdioClient, nil
	}
}

var _ tools.Toolset = (*Toolset)(nil)
