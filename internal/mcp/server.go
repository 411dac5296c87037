package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/groupbot-dev/groupbot/internal/api"
)

// Server exposes read-only bot tools over MCP
type Server struct {
	server *mcp.Server
	client *Client
}

// NewServer creates an MCP server backed by the local API client
func NewServer(client *Client, version string) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "groupbot-tools",
			Version: version,
		}, nil),
		client: client,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "groupbot_status",
		Description: "Get the bot status: current time, uptime, memory usage and the number of messages in the history log.",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "groupbot_groups",
		Description: "List the managed groups with their member counts.",
	}, s.handleGroups)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "groupbot_latency",
		Description: "Get the delay in seconds between the platform timestamp of the last received message and its receipt.",
	}, s.handleLatency)
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// EmptyInput is the input of tools that take no arguments
type EmptyInput struct{}

// StatusOutput is the output of groupbot_status
type StatusOutput struct {
	Report        string `json:"report"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Memory        string `json:"memory"`
	Messages      int    `json:"messages"`
	Error         string `json:"error,omitempty"`
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := s.client.Status(ctx)
	if err != nil {
		return nil, StatusOutput{Error: err.Error()}, nil
	}
	return nil, StatusOutput{
		Report:        status.Report,
		UptimeSeconds: status.UptimeSeconds,
		Memory:        status.Memory,
		Messages:      status.Messages,
	}, nil
}

// GroupsOutput is the output of groupbot_groups
type GroupsOutput struct {
	Groups []api.Group `json:"groups"`
	Error  string      `json:"error,omitempty"`
}

func (s *Server) handleGroups(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, GroupsOutput, error) {
	groups, err := s.client.Groups(ctx)
	if err != nil {
		return nil, GroupsOutput{Error: err.Error()}, nil
	}
	return nil, GroupsOutput{Groups: groups}, nil
}

// LatencyOutput is the output of groupbot_latency
type LatencyOutput struct {
	Known          bool    `json:"known"`
	LatencySeconds float64 `json:"latency_seconds"`
	Error          string  `json:"error,omitempty"`
}

func (s *Server) handleLatency(ctx context.Context, req *mcp.CallToolRequest, input EmptyInput) (*mcp.CallToolResult, LatencyOutput, error) {
	latency, err := s.client.Latency(ctx)
	if err != nil {
		return nil, LatencyOutput{Error: err.Error()}, nil
	}
	return nil, LatencyOutput{Known: latency.Known, LatencySeconds: latency.LatencySeconds}, nil
}
