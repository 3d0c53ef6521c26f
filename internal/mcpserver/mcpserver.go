package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/panbanda/howitworks/internal/cache"
	"github.com/panbanda/howitworks/pkg/config"
)

// Server wraps the MCP server and registers the call graph tools.
type Server struct {
	server *mcp.Server
	config *config.Config
	cache  *cache.Cache
}

// Option configures a Server.
type Option func(*Server)

// WithConfig sets the base configuration tool inputs are applied over.
func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithCache shares a result cache across tool calls.
func WithCache(c *cache.Cache) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// NewServer creates a new MCP server with all tools and prompts registered.
func NewServer(version string, opts ...Option) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "howitworks",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server, config: config.DefaultConfig()}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "callgraph",
		Description: describeCallGraph(),
	}, s.handleCallGraph)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "callees",
		Description: describeCallees(),
	}, s.handleCallees)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "modules",
		Description: describeModules(),
	}, s.handleModules)
}
