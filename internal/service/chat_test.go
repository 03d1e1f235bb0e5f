package service

import (
	"context"
	"testing"

	"github.com/remembernow/agentd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChatService() (*ChatService, *mockUserStore, *mockAgentClient) {
	users := newMockUserStore()
	client := newMockAgentClient()
	provider := newTestProvider(users, client)
	return NewChatService(client, provider, zap.NewNop()), users, client
}

func TestChatService_SendMessageProvisionsLazily(t *testing.T) {
	svc, users, client := newTestChatService()
	ctx := context.Background()

	u := users.addUser("a@example.com")

	resp, err := svc.SendMessage(ctx, u.ID, "hello")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Messages)

	// The agent was created on first use and linked to the user.
	assert.Equal(t, 1, client.createCalls)
	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AgentID)

	// A second message reuses the same agent.
	_, err = svc.SendMessage(ctx, u.ID, "hello again")
	require.NoError(t, err)
	assert.Equal(t, 1, client.createCalls)
}

func TestChatService_SendMessageUserNotFound(t *testing.T) {
	svc, _, _ := newTestChatService()

	_, err := svc.SendMessage(context.Background(), 42, "hello")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestChatService_GetMessages(t *testing.T) {
	svc, users, _ := newTestChatService()
	ctx := context.Background()

	u := users.addUser("a@example.com")

	_, err := svc.SendMessage(ctx, u.ID, "hello")
	require.NoError(t, err)

	messages, err := svc.GetMessages(ctx, u.ID, domain.ListMessagesOpts{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestChatService_GetAgentInfo(t *testing.T) {
	svc, users, _ := newTestChatService()
	ctx := context.Background()

	u := users.addUser("a@example.com")

	info, err := svc.GetAgentInfo(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "agent_1", info.ID)
}

func TestChatService_GetMemoryBlockNotFound(t *testing.T) {
	svc, users, _ := newTestChatService()
	ctx := context.Background()

	u := users.addUser("a@example.com")

	_, err := svc.GetMemoryBlock(ctx, u.ID, "missing")
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestChatService_CreateMemoryBlock(t *testing.T) {
	svc, users, _ := newTestChatService()
	ctx := context.Background()

	u := users.addUser("a@example.com")

	block, err := svc.CreateMemoryBlock(ctx, u.ID, domain.MemoryBlock{
		Label: "preferences",
		Value: "likes concise answers",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, block.ID)
}
