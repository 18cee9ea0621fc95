package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// GuardMCPServer exposes moderation administration as MCP tools. Tool calls
// are relayed to the running guard process over its local HTTP API.
type GuardMCPServer struct {
	server *mcp.Server
	api    *apiClient
}

// apiClient is a thin client for the guard HTTP API
type apiClient struct {
	baseURL string
	http    *http.Client
}

// NewServer creates a new guard MCP server. The guard API address is read
// from GUARD_API_URL (default http://127.0.0.1:9876).
func NewServer() *GuardMCPServer {
	baseURL := os.Getenv("GUARD_API_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:9876"
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "guard-tools",
		Version: "v1.0.0",
	}, nil)

	gs := &GuardMCPServer{
		server: server,
		api: &apiClient{
			baseURL: baseURL,
			http:    &http.Client{Timeout: 10 * time.Second},
		},
	}

	gs.registerTools()

	return gs
}

// Run starts the MCP server with stdio transport
func (s *GuardMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools registers all moderation admin tools
func (s *GuardMCPServer) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "guard_status",
		Description: "Get the bot status: transport connection, AI availability, ban count, locked groups, allowed link domains.",
	}, s.handleStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "guard_list_bans",
		Description: "List the user IDs currently banned from using the bot.",
	}, s.handleListBans)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "guard_ban_user",
		Description: "Ban a user by ID. Banned users are ignored by the bot entirely.",
	}, s.handleBanUser)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "guard_unban_user",
		Description: "Lift a ban for a user by ID.",
	}, s.handleUnbanUser)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "guard_list_allowed_domains",
		Description: "List the link domains that pass the moderation link filter.",
	}, s.handleListDomains)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "guard_allow_domain",
		Description: "Add a domain to the link whitelist so messages linking to it are not blocked.",
	}, s.handleAllowDomain)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "guard_block_domain",
		Description: "Remove a domain from the link whitelist.",
	}, s.handleBlockDomain)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "guard_recent_audit",
		Description: "Get recent moderation audit records (blocks, warnings, bans, kicks).",
	}, s.handleRecentAudit)
}

// StatusInput is empty - no input needed
type StatusInput struct{}

// StatusOutput mirrors the guard status endpoint
type StatusOutput struct {
	Status json.RawMessage `json:"status,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (s *GuardMCPServer) handleStatus(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (*mcp.CallToolResult, StatusOutput, error) {
	raw, err := s.api.get(ctx, "/api/status")
	if err != nil {
		return nil, StatusOutput{Error: err.Error()}, nil
	}
	return nil, StatusOutput{Status: raw}, nil
}

// ListBansInput is empty - no input needed
type ListBansInput struct{}

// ListBansOutput contains the banned user IDs
type ListBansOutput struct {
	Bans  []string `json:"bans"`
	Error string   `json:"error,omitempty"`
}

func (s *GuardMCPServer) handleListBans(ctx context.Context, req *mcp.CallToolRequest, input ListBansInput) (*mcp.CallToolResult, ListBansOutput, error) {
	raw, err := s.api.get(ctx, "/api/bans")
	if err != nil {
		return nil, ListBansOutput{Error: err.Error()}, nil
	}
	var body struct {
		Bans []string `json:"bans"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, ListBansOutput{Error: err.Error()}, nil
	}
	return nil, ListBansOutput{Bans: body.Bans}, nil
}

// BanUserInput identifies the user to ban
type BanUserInput struct {
	UserID string `json:"user_id" jsonschema:"description=The ID of the user to ban"`
}

// BanUserOutput reports the result
type BanUserOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *GuardMCPServer) handleBanUser(ctx context.Context, req *mcp.CallToolRequest, input BanUserInput) (*mcp.CallToolResult, BanUserOutput, error) {
	if input.UserID == "" {
		return nil, BanUserOutput{Success: false, Error: "user_id is required"}, nil
	}
	if err := s.api.post(ctx, "/api/bans", map[string]string{"id": input.UserID}); err != nil {
		return nil, BanUserOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, BanUserOutput{Success: true}, nil
}

// UnbanUserInput identifies the user to unban
type UnbanUserInput struct {
	UserID string `json:"user_id" jsonschema:"description=The ID of the user to unban"`
}

// UnbanUserOutput reports the result
type UnbanUserOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *GuardMCPServer) handleUnbanUser(ctx context.Context, req *mcp.CallToolRequest, input UnbanUserInput) (*mcp.CallToolResult, UnbanUserOutput, error) {
	if input.UserID == "" {
		return nil, UnbanUserOutput{Success: false, Error: "user_id is required"}, nil
	}
	if err := s.api.del(ctx, "/api/bans/"+input.UserID); err != nil {
		return nil, UnbanUserOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, UnbanUserOutput{Success: true}, nil
}

// ListDomainsInput is empty - no input needed
type ListDomainsInput struct{}

// ListDomainsOutput contains the whitelisted domains
type ListDomainsOutput struct {
	Domains []string `json:"domains"`
	Error   string   `json:"error,omitempty"`
}

func (s *GuardMCPServer) handleListDomains(ctx context.Context, req *mcp.CallToolRequest, input ListDomainsInput) (*mcp.CallToolResult, ListDomainsOutput, error) {
	raw, err := s.api.get(ctx, "/api/whitelist")
	if err != nil {
		return nil, ListDomainsOutput{Error: err.Error()}, nil
	}
	var body struct {
		Domains []string `json:"domains"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, ListDomainsOutput{Error: err.Error()}, nil
	}
	return nil, ListDomainsOutput{Domains: body.Domains}, nil
}

// AllowDomainInput names the domain to whitelist
type AllowDomainInput struct {
	Domain string `json:"domain" jsonschema:"description=The domain to allow, e.g. example.com"`
}

// AllowDomainOutput reports the result
type AllowDomainOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *GuardMCPServer) handleAllowDomain(ctx context.Context, req *mcp.CallToolRequest, input AllowDomainInput) (*mcp.CallToolResult, AllowDomainOutput, error) {
	if input.Domain == "" {
		return nil, AllowDomainOutput{Success: false, Error: "domain is required"}, nil
	}
	if err := s.api.post(ctx, "/api/whitelist", map[string]string{"domain": input.Domain}); err != nil {
		return nil, AllowDomainOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, AllowDomainOutput{Success: true}, nil
}

// BlockDomainInput names the domain to remove from the whitelist
type BlockDomainInput struct {
	Domain string `json:"domain" jsonschema:"description=The domain to remove from the whitelist"`
}

// BlockDomainOutput reports the result
type BlockDomainOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *GuardMCPServer) handleBlockDomain(ctx context.Context, req *mcp.CallToolRequest, input BlockDomainInput) (*mcp.CallToolResult, BlockDomainOutput, error) {
	if input.Domain == "" {
		return nil, BlockDomainOutput{Success: false, Error: "domain is required"}, nil
	}
	if err := s.api.del(ctx, "/api/whitelist/"+input.Domain); err != nil {
		return nil, BlockDomainOutput{Success: false, Error: err.Error()}, nil
	}
	return nil, BlockDomainOutput{Success: true}, nil
}

// RecentAuditInput specifies how many records to retrieve
type RecentAuditInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of records to retrieve (default 50)"`
}

// RecentAuditOutput contains recent audit records
type RecentAuditOutput struct {
	Records json.RawMessage `json:"records,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (s *GuardMCPServer) handleRecentAudit(ctx context.Context, req *mcp.CallToolRequest, input RecentAuditInput) (*mcp.CallToolResult, RecentAuditOutput, error) {
	path := "/api/audit"
	if input.Limit > 0 {
		path = fmt.Sprintf("/api/audit?limit=%d", input.Limit)
	}
	raw, err := s.api.get(ctx, path)
	if err != nil {
		return nil, RecentAuditOutput{Error: err.Error()}, nil
	}
	return nil, RecentAuditOutput{Records: raw}, nil
}

func (c *apiClient) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *apiClient) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *apiClient) del(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

func (c *apiClient) do(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("guard API unreachable: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("guard API returned %d: %s", resp.StatusCode, buf.String())
	}
	return json.RawMessage(buf.Bytes()), nil
}
