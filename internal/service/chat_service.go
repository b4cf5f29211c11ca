package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"vyapar-go/internal/intent"
	"vyapar-go/internal/model"
	"vyapar-go/internal/repository"
	"vyapar-go/pkg/llm"
	"vyapar-go/pkg/log"
)

const documentReply = "Please upload your document in the Document Explainer section and I'll analyze it for you."

// ChatReply 是一次聊天交互的结果。
type ChatReply struct {
	Intent  intent.Result  `json:"intent"`
	Reply   string         `json:"reply"`
	Session *model.Session `json:"session"`
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// HandleMessage 以阻塞方式处理一条消息。
	HandleMessage(ctx context.Context, user *model.User, text string) (*ChatReply, error)
	// StreamMessage 处理一条消息，回复以分块形式写入 writer。
	StreamMessage(ctx context.Context, user *model.User, text string, writer llm.MessageWriter) (*ChatReply, error)
}

type chatService struct {
	sessions  *sessions
	llmClient llm.Client
	gen       *llm.GenerationParams
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(sessionRepo repository.SessionRepository, historyRepo repository.ChatHistoryRepository, systemPrompt string, llmClient llm.Client, gen *llm.GenerationParams) ChatService {
	return &chatService{
		sessions:  newSessions(sessionRepo, historyRepo, systemPrompt),
		llmClient: llmClient,
		gen:       gen,
	}
}

func (s *chatService) HandleMessage(ctx context.Context, user *model.User, text string) (*ChatReply, error) {
	return s.handle(ctx, user, text, nil)
}

func (s *chatService) StreamMessage(ctx context.Context, user *model.User, text string, writer llm.MessageWriter) (*ChatReply, error) {
	return s.handle(ctx, user, text, writer)
}

// handle 持久化用户消息、识别意图并生成回复。writer 为 nil 时使用阻塞模式。
// 会话字段在一次原子更新中修改，LLM 调用期间不持有会话。
func (s *chatService) handle(ctx context.Context, user *model.User, text string, writer llm.MessageWriter) (*ChatReply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	if _, err := s.sessions.record(user.ID, model.RoleUser, text); err != nil {
		return nil, err
	}

	result := intent.Detect(text)
	var reply string
	session, err := s.sessions.update(ctx, user, func(session *model.Session) {
		session.LastIntent = string(result.Kind)
		switch result.Kind {
		case intent.KindInvoice:
			reply = routeInvoice(session, result)
		case intent.KindDocument:
			reply = documentReply
			session.ActiveTab = model.PageExplainDocument
		}
	})
	if err != nil {
		return nil, err
	}

	if result.Kind == intent.KindChat {
		// 用户消息已保存，失败时直接返回
		reply, err = s.complete(ctx, session, writer)
		if err != nil {
			return nil, err
		}
	} else if writer != nil {
		if err := writer.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			return nil, fmt.Errorf("failed to write reply: %w", err)
		}
	}

	msg, err := s.sessions.record(user.ID, model.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}
	session.Messages = append(session.Messages, msg)
	return &ChatReply{Intent: result, Reply: reply, Session: session}, nil
}

// routeInvoice 把抽取的字段合并进发票草稿并切换到发票页面。非空的新值优先。
func routeInvoice(session *model.Session, result intent.Result) string {
	draft := &session.InvoiceDraft
	if result.Customer != "" {
		draft.Customer = result.Customer
	}
	if result.Amount != 0 {
		draft.Amount = result.Amount
	}
	session.ActiveTab = model.PageInvoiceGenerator
	return invoiceReply(draft.Customer, draft.Amount)
}

func invoiceReply(customer string, amount float64) string {
	switch {
	case customer != "" && amount != 0:
		return fmt.Sprintf("Sure! Taking you to the Invoice Generator for %s with amount %s...", customer, rupees(amount))
	case customer != "":
		return fmt.Sprintf("Understood! Preparing invoice for %s. Please enter the amount.", customer)
	case amount != 0:
		return fmt.Sprintf("Got it! Preparing invoice for %s. Please enter customer name.", rupees(amount))
	default:
		return "Taking you to the Invoice Generator..."
	}
}

func rupees(amount float64) string {
	return "₹" + humanize.FormatFloat("#,###.##", amount)
}

// complete 以整个会话消息列表调用 LLM。
func (s *chatService) complete(ctx context.Context, session *model.Session, writer llm.MessageWriter) (string, error) {
	msgs := toLLMMessages(session.Messages)
	if writer == nil {
		out, err := s.llmClient.Complete(ctx, msgs, s.gen)
		if err != nil {
			log.Errorf("[ChatService] LLM 调用失败: %v", err)
			return "", fmt.Errorf("%w: %v", ErrLLMFailed, err)
		}
		return out, nil
	}

	collector := &collectingWriter{next: writer}
	if err := s.llmClient.StreamChatMessages(ctx, msgs, s.gen, collector); err != nil {
		log.Errorf("[ChatService] LLM 流式调用失败: %v", err)
		return "", fmt.Errorf("%w: %v", ErrLLMFailed, err)
	}
	return collector.String(), nil
}

func toLLMMessages(messages []model.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// collectingWriter 转发每个分块，同时拼接完整回复以便持久化。
type collectingWriter struct {
	next llm.MessageWriter
	sb   strings.Builder
}

func (w *collectingWriter) WriteMessage(messageType int, data []byte) error {
	w.sb.Write(data)
	return w.next.WriteMessage(messageType, data)
}

func (w *collectingWriter) String() string {
	return w.sb.String()
}
