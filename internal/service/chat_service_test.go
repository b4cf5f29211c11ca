package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vyapar-go/internal/intent"
	"vyapar-go/internal/model"
)

func newChatService(env *testEnv, client *fakeLLM) ChatService {
	return NewChatService(env.sessions, env.history, testSystemPrompt, client, nil)
}

func TestChatService_InvoiceIntent(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "anil", "")
	client := &fakeLLM{}
	svc := newChatService(env, client)

	reply, err := svc.HandleMessage(context.Background(), user, "Generate invoice for Anil ₹5000")
	require.NoError(t, err)
	assert.Equal(t, intent.KindInvoice, reply.Intent.Kind)
	assert.Equal(t, "Sure! Taking you to the Invoice Generator for Anil with amount ₹5,000.00...", reply.Reply)
	assert.Equal(t, model.PageInvoiceGenerator, reply.Session.ActiveTab)
	assert.Equal(t, model.InvoiceDraft{Customer: "Anil", Amount: 5000}, reply.Session.InvoiceDraft)
	assert.Equal(t, "invoice", reply.Session.LastIntent)
	assert.Empty(t, client.received, "invoice intent must not call the LLM")

	history, err := env.history.ListByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
}

func TestChatService_DraftMerge(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "anil", "")
	svc := newChatService(env, &fakeLLM{})
	ctx := context.Background()

	reply, err := svc.HandleMessage(ctx, user, "invoice for ramesh 12000")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceDraft{Customer: "Ramesh", Amount: 12000}, reply.Session.InvoiceDraft)

	// 只给金额时保留草稿里的客户名
	reply, err = svc.HandleMessage(ctx, user, "generate invoice for 7500")
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceDraft{Customer: "Ramesh", Amount: 7500}, reply.Session.InvoiceDraft)
	assert.Equal(t, "Sure! Taking you to the Invoice Generator for Ramesh with amount ₹7,500.00...", reply.Reply)

	stored, err := env.sessions.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceDraft{Customer: "Ramesh", Amount: 7500}, stored.InvoiceDraft)
}

func TestInvoiceReply(t *testing.T) {
	assert.Equal(t, "Understood! Preparing invoice for Anil. Please enter the amount.", invoiceReply("Anil", 0))
	assert.Equal(t, "Got it! Preparing invoice for ₹5,000.50. Please enter customer name.", invoiceReply("", 5000.5))
	assert.Equal(t, "Taking you to the Invoice Generator...", invoiceReply("", 0))
}

func TestChatService_DocumentIntent(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "anil", "")
	client := &fakeLLM{}
	svc := newChatService(env, client)

	w := &recordingWriter{}
	reply, err := svc.StreamMessage(context.Background(), user, "please explain this GST notice", w)
	require.NoError(t, err)
	assert.Equal(t, intent.KindDocument, reply.Intent.Kind)
	assert.Equal(t, documentReply, reply.Reply)
	assert.Equal(t, model.PageExplainDocument, reply.Session.ActiveTab)
	assert.Equal(t, []string{documentReply}, w.chunks)
	assert.Empty(t, client.received)
}

func TestChatService_ChatIntent(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "anil", "anil@example.com")
	client := &fakeLLM{chunks: []string{"PMEGP ", "and CGTMSE."}}
	svc := newChatService(env, client)

	reply, err := svc.HandleMessage(context.Background(), user, "What subsidies exist for textile MSMEs?")
	require.NoError(t, err)
	assert.Equal(t, intent.KindChat, reply.Intent.Kind)
	assert.Equal(t, "PMEGP and CGTMSE.", reply.Reply)

	require.Len(t, client.received, 1)
	sent := client.received[0]
	require.Len(t, sent, 2)
	assert.Equal(t, model.RoleSystem, sent[0].Role)
	assert.Contains(t, sent[0].Content, "The current user is Anil Kumar.")
	assert.Contains(t, sent[0].Content, "Email: anil@example.com, Phone: not provided.")
	assert.Equal(t, "What subsidies exist for textile MSMEs?", sent[1].Content)

	history, err := env.history.ListByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "PMEGP and CGTMSE.", history[1].Content)
}

func TestChatService_StreamCollectsChunks(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "anil", "")
	client := &fakeLLM{chunks: []string{"Hello", ", ", "world"}}
	svc := newChatService(env, client)

	w := &recordingWriter{}
	reply, err := svc.StreamMessage(context.Background(), user, "hello", w)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", ", ", "world"}, w.chunks)
	assert.Equal(t, "Hello, world", reply.Reply)

	// 第二轮对话带上完整上下文
	_, err = svc.HandleMessage(context.Background(), user, "and again")
	require.NoError(t, err)
	require.Len(t, client.received, 2)
	assert.Len(t, client.received[1], 4)
}

func TestChatService_LLMFailure(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "anil", "")
	svc := newChatService(env, &fakeLLM{err: errBoom})

	_, err := svc.HandleMessage(context.Background(), user, "hello")
	assert.ErrorIs(t, err, ErrLLMFailed)

	// 用户消息仍然保存
	history, err := env.history.ListByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hello", history[0].Content)
}

func TestChatService_EmptyMessage(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "anil", "")
	svc := newChatService(env, &fakeLLM{})

	_, err := svc.HandleMessage(context.Background(), user, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestChatService_ConcurrentRequestsKeepAllMessages(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "anil", "")
	svc := newChatService(env, &fakeLLM{})
	invoices := NewInvoiceService(env.sessions, env.history, testSystemPrompt, nil)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.HandleMessage(ctx, user, "please explain this GST notice")
			assert.NoError(t, err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := invoices.Generate(ctx, user, "Anil", 5000)
		assert.NoError(t, err)
	}()
	wg.Wait()

	snap, err := NewSessionService(env.sessions, env.history, testSystemPrompt).Snapshot(ctx, user)
	require.NoError(t, err)
	assert.Len(t, snap.Messages, 1+2*n)
	assert.Equal(t, "document", snap.LastIntent)
	assert.Equal(t, model.InvoiceDraft{Customer: "Anil", Amount: 5000}, snap.InvoiceDraft)
}
