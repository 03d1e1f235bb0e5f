package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/remembernow/agentd/internal/domain"
	"github.com/remembernow/agentd/internal/service"
)

// AgentHandler exposes a user's agent: info, conversation, and core memory
// blocks. The agent is provisioned lazily on first access.
type AgentHandler struct {
	svc *service.ChatService
}

func NewAgentHandler(svc *service.ChatService) *AgentHandler {
	return &AgentHandler{svc: svc}
}

func (h *AgentHandler) GetInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	info, err := h.svc.GetAgentInfo(r.Context(), id)
	if err != nil {
		h.writeAgentError(w, err, "failed to retrieve agent information")
		return
	}

	writeJSON(w, http.StatusOK, info)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *AgentHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	resp, err := h.svc.SendMessage(r.Context(), id, req.Message)
	if err != nil {
		h.writeAgentError(w, err, "failed to communicate with agent")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AgentHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	messages, err := h.svc.GetMessages(r.Context(), id, domain.ListMessagesOpts{
		Limit:  limit,
		Before: q.Get("before"),
	})
	if err != nil {
		h.writeAgentError(w, err, "failed to get agent messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *AgentHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	blocks, err := h.svc.ListMemoryBlocks(r.Context(), id)
	if err != nil {
		h.writeAgentError(w, err, "failed to list memory blocks")
		return
	}

	writeJSON(w, http.StatusOK, blocks)
}

func (h *AgentHandler) GetBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	block, err := h.svc.GetMemoryBlock(r.Context(), id, chi.URLParam(r, "label"))
	if err != nil {
		h.writeAgentError(w, err, "failed to get memory block")
		return
	}

	writeJSON(w, http.StatusOK, block)
}

type createBlockRequest struct {
	Label       string `json:"label"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Limit       int    `json:"limit"`
	ReadOnly    bool   `json:"read_only"`
}

func (h *AgentHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req createBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Label == "" {
		writeError(w, http.StatusBadRequest, "label is required")
		return
	}

	block, err := h.svc.CreateMemoryBlock(r.Context(), id, domain.MemoryBlock{
		Label:       req.Label,
		Value:       req.Value,
		Description: req.Description,
		Limit:       req.Limit,
		ReadOnly:    req.ReadOnly,
	})
	if err != nil {
		h.writeAgentError(w, err, "failed to create memory block")
		return
	}

	writeJSON(w, http.StatusCreated, block)
}

func (h *AgentHandler) UpdateBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var update domain.BlockUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	block, err := h.svc.UpdateMemoryBlock(r.Context(), id, chi.URLParam(r, "label"), update)
	if err != nil {
		h.writeAgentError(w, err, "failed to update memory block")
		return
	}

	writeJSON(w, http.StatusOK, block)
}

func (h *AgentHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	label := chi.URLParam(r, "label")
	if err := h.svc.DeleteMemoryBlock(r.Context(), id, label); err != nil {
		h.writeAgentError(w, err, "failed to delete memory block")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "memory block deleted",
		"label":   label,
	})
}

func (h *AgentHandler) writeAgentError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAgentNotFound), errors.Is(err, service.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
