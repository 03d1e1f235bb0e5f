package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/remembernow/agentd/internal/domain"
)

// ErrNotFound is returned when the agent service reports that the
// referenced agent or block does not exist.
var ErrNotFound = errors.New("agent resource not found")

// Client is a thin REST wrapper over the external agent service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

func (c *Client) CreateAgent(ctx context.Context, cfg domain.AgentConfig) (*domain.Agent, error) {
	agent := &domain.Agent{}
	if err := c.do(ctx, http.MethodPost, "/v1/agents", cfg, agent); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	if agent.ID == "" {
		return nil, fmt.Errorf("create agent: service returned no id")
	}
	return agent, nil
}

func (c *Client) RetrieveAgent(ctx context.Context, id string) (*domain.Agent, error) {
	agent := &domain.Agent{}
	if err := c.do(ctx, http.MethodGet, "/v1/agents/"+id, nil, agent); err != nil {
		return nil, fmt.Errorf("retrieve agent %s: %w", id, err)
	}
	return agent, nil
}

func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/agents/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete agent %s: %w", id, err)
	}
	return nil
}

type sendMessageRequest struct {
	Messages []domain.AgentMessage `json:"messages"`
}

func (c *Client) SendMessage(ctx context.Context, agentID string, messages []domain.AgentMessage) (*domain.ChatResponse, error) {
	resp := &domain.ChatResponse{}
	err := c.do(ctx, http.MethodPost, "/v1/agents/"+agentID+"/messages", sendMessageRequest{Messages: messages}, resp)
	if err != nil {
		return nil, fmt.Errorf("send message to agent %s: %w", agentID, err)
	}
	return resp, nil
}

func (c *Client) ListMessages(ctx context.Context, agentID string, opts domain.ListMessagesOpts) ([]domain.AgentMessage, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Before != "" {
		q.Set("before", opts.Before)
	}
	path := "/v1/agents/" + agentID + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var messages []domain.AgentMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, fmt.Errorf("list messages for agent %s: %w", agentID, err)
	}
	return messages, nil
}

func (c *Client) ListBlocks(ctx context.Context, agentID string) ([]domain.MemoryBlock, error) {
	var blocks []domain.MemoryBlock
	if err := c.do(ctx, http.MethodGet, "/v1/agents/"+agentID+"/core-memory/blocks", nil, &blocks); err != nil {
		return nil, fmt.Errorf("list blocks for agent %s: %w", agentID, err)
	}
	return blocks, nil
}

func (c *Client) RetrieveBlock(ctx context.Context, agentID, label string) (*domain.MemoryBlock, error) {
	block := &domain.MemoryBlock{}
	if err := c.do(ctx, http.MethodGet, "/v1/agents/"+agentID+"/core-memory/blocks/"+label, nil, block); err != nil {
		return nil, fmt.Errorf("retrieve block %s: %w", label, err)
	}
	return block, nil
}

func (c *Client) CreateBlock(ctx context.Context, b domain.MemoryBlock) (*domain.MemoryBlock, error) {
	block := &domain.MemoryBlock{}
	if err := c.do(ctx, http.MethodPost, "/v1/blocks", b, block); err != nil {
		return nil, fmt.Errorf("create block %s: %w", b.Label, err)
	}
	return block, nil
}

func (c *Client) AttachBlock(ctx context.Context, agentID, blockID string) error {
	path := "/v1/agents/" + agentID + "/core-memory/blocks/attach/" + blockID
	if err := c.do(ctx, http.MethodPatch, path, nil, nil); err != nil {
		return fmt.Errorf("attach block %s to agent %s: %w", blockID, agentID, err)
	}
	return nil
}

func (c *Client) DetachBlock(ctx context.Context, agentID, blockID string) error {
	path := "/v1/agents/" + agentID + "/core-memory/blocks/detach/" + blockID
	if err := c.do(ctx, http.MethodPatch, path, nil, nil); err != nil {
		return fmt.Errorf("detach block %s from agent %s: %w", blockID, agentID, err)
	}
	return nil
}

func (c *Client) ModifyBlock(ctx context.Context, agentID, label string, update domain.BlockUpdate) (*domain.MemoryBlock, error) {
	block := &domain.MemoryBlock{}
	path := "/v1/agents/" + agentID + "/core-memory/blocks/" + label
	if err := c.do(ctx, http.MethodPatch, path, update, block); err != nil {
		return nil, fmt.Errorf("modify block %s: %w", label, err)
	}
	return block, nil
}

// do issues a JSON request and decodes the response into out (when non-nil).
// A 404 maps to ErrNotFound; other non-2xx statuses include the body in the
// error message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
