package agentapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/remembernow/agentd/internal/domain"
)

func TestClient_CreateAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/agents" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}
		var cfg domain.AgentConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if cfg.Model != "google_ai/gemini-2.5-pro" {
			t.Errorf("unexpected model: %q", cfg.Model)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.Agent{ID: "agent-123", Model: cfg.Model})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	agent, err := c.CreateAgent(context.Background(), domain.AgentConfig{
		AgentType: "memgpt_v2_agent",
		Model:     "google_ai/gemini-2.5-pro",
	})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if agent.ID != "agent-123" {
		t.Errorf("expected agent id agent-123, got %q", agent.ID)
	}
}

func TestClient_CreateAgentMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.CreateAgent(context.Background(), domain.AgentConfig{}); err == nil {
		t.Fatal("expected error when service returns no agent id")
	}
}

func TestClient_RetrieveAgentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.RetrieveAgent(context.Background(), "gone")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_DeleteAgent(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.DeleteAgent(context.Background(), "agent-123"); err != nil {
		t.Fatalf("DeleteAgent: %v", err)
	}
	if gotPath != "DELETE /v1/agents/agent-123" {
		t.Errorf("unexpected request: %s", gotPath)
	}
}

func TestClient_DeleteAgentNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.DeleteAgent(context.Background(), "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_ServerErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model unavailable"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.RetrieveAgent(context.Background(), "agent-123")
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
	if !strings.Contains(err.Error(), "status 500") || !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("expected status and body in error, got %v", err)
	}
}

func TestClient_ListMessagesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("expected limit=20, got %q", got)
		}
		if got := r.URL.Query().Get("before"); got != "msg-9" {
			t.Errorf("expected before=msg-9, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"role":"assistant","content":"hi"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	msgs, err := c.ListMessages(context.Background(), "agent-123", domain.ListMessagesOpts{Limit: 20, Before: "msg-9"})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hi" {
		t.Errorf("unexpected messages: %+v", msgs)
	}
}

func TestClient_AttachBlock(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.AttachBlock(context.Background(), "agent-123", "block-7"); err != nil {
		t.Fatalf("AttachBlock: %v", err)
	}
	if gotPath != "PATCH /v1/agents/agent-123/core-memory/blocks/attach/block-7" {
		t.Errorf("unexpected request: %s", gotPath)
	}
}
