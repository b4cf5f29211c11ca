package service

import (
	"context"
	"errors"
	"fmt"

	"vyapar-go/internal/model"
	"vyapar-go/internal/repository"
)

// sessions 负责会话的加载、重建与保存，被各个业务服务共享。
type sessions struct {
	repo         repository.SessionRepository
	history      repository.ChatHistoryRepository
	systemPrompt string
}

func newSessions(repo repository.SessionRepository, history repository.ChatHistoryRepository, systemPrompt string) *sessions {
	return &sessions{repo: repo, history: history, systemPrompt: systemPrompt}
}

// transcript 返回该账号的聊天记录，保证第一条是 system 消息。
func (s *sessions) transcript(userID uint) ([]model.ChatMessage, error) {
	messages, err := s.history.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	if len(messages) == 0 || messages[0].Role != model.RoleSystem {
		messages = append([]model.ChatMessage{{Role: model.RoleSystem, Content: s.systemPrompt}}, messages...)
	}
	return messages, nil
}

// create 用回放的聊天记录创建一个新会话并保存，覆盖已有会话。登录时使用。
func (s *sessions) create(ctx context.Context, user *model.User) (*model.Session, error) {
	messages, err := s.transcript(user.ID)
	if err != nil {
		return nil, err
	}
	session := model.NewSession(user, messages)
	if err := s.repo.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// ensure 在会话不存在时用聊天记录创建一个，已被其他请求创建时保留对方的会话。
func (s *sessions) ensure(ctx context.Context, user *model.User) error {
	messages, err := s.transcript(user.ID)
	if err != nil {
		return err
	}
	_, err = s.repo.SaveIfAbsent(ctx, model.NewSession(user, messages))
	return err
}

// load 读取会话，不存在或已过期时从聊天记录创建。
// 会话缓冲区总是按聊天记录重建，聊天记录是消息的唯一来源，并发请求追加的消息不会互相覆盖。
func (s *sessions) load(ctx context.Context, user *model.User) (*model.Session, error) {
	session, err := s.repo.Get(ctx, user.ID)
	if errors.Is(err, repository.ErrSessionNotFound) {
		if err := s.ensure(ctx, user); err != nil {
			return nil, err
		}
		session, err = s.repo.Get(ctx, user.ID)
	}
	if err != nil {
		return nil, err
	}
	if err := s.rebuild(session, user); err != nil {
		return nil, err
	}
	return session, nil
}

// update 原子地修改会话字段，会话不存在时先创建。fn 可能被重复调用。
func (s *sessions) update(ctx context.Context, user *model.User, fn func(*model.Session)) (*model.Session, error) {
	session, err := s.repo.Update(ctx, user.ID, s.mutator(user, fn))
	if errors.Is(err, repository.ErrSessionNotFound) {
		if err := s.ensure(ctx, user); err != nil {
			return nil, err
		}
		session, err = s.repo.Update(ctx, user.ID, s.mutator(user, fn))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	return session, nil
}

func (s *sessions) mutator(user *model.User, fn func(*model.Session)) func(*model.Session) error {
	return func(session *model.Session) error {
		if err := s.rebuild(session, user); err != nil {
			return err
		}
		if fn != nil {
			fn(session)
		}
		return nil
	}
}

// rebuild 用聊天记录替换会话缓冲区并写入个性化的 system 消息。
func (s *sessions) rebuild(session *model.Session, user *model.User) error {
	messages, err := s.transcript(user.ID)
	if err != nil {
		return err
	}
	session.Messages = messages
	s.personalize(session, user)
	return nil
}

// record 把一条消息追加到聊天记录。
func (s *sessions) record(userID uint, role, content string) (model.ChatMessage, error) {
	msg := model.ChatMessage{UserID: userID, Role: role, Content: content}
	if err := s.history.Append(&msg); err != nil {
		return model.ChatMessage{}, fmt.Errorf("failed to save chat message: %w", err)
	}
	return msg, nil
}

// personalize 用当前用户的姓名与联系方式改写会话的 system 消息。
func (s *sessions) personalize(session *model.Session, user *model.User) {
	prompt := personalizedPrompt(s.systemPrompt, user)
	if len(session.Messages) == 0 {
		session.Messages = []model.ChatMessage{{Role: model.RoleSystem, Content: prompt}}
		return
	}
	session.Messages[0].Content = prompt
}

func personalizedPrompt(base string, user *model.User) string {
	orNotProvided := func(v string) string {
		if v == "" {
			return "not provided"
		}
		return v
	}
	return fmt.Sprintf("%s\nThe current user is %s %s.\nContact details - Email: %s, Phone: %s.",
		base, user.FirstName, user.LastName, orNotProvided(user.Email), orNotProvided(user.Phone))
}

// FeatureCard 是概览页上的一张功能卡片。
type FeatureCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Page        string `json:"page,omitempty"`
}

// OverviewDTO 是概览页的内容。
type OverviewDTO struct {
	Welcome  string        `json:"welcome"`
	Subtitle string        `json:"subtitle"`
	Title    string        `json:"title"`
	Features []FeatureCard `json:"features"`
	Hint     string        `json:"hint"`
}

// SessionService 定义了页面导航与会话快照相关的操作。
type SessionService interface {
	Pages() []string
	Snapshot(ctx context.Context, user *model.User) (*model.Session, error)
	SetActiveTab(ctx context.Context, user *model.User, tab string) (*model.Session, error)
	Overview(user *model.User) OverviewDTO
}

type sessionService struct {
	sessions *sessions
}

// NewSessionService 创建一个新的 SessionService 实例。
func NewSessionService(sessionRepo repository.SessionRepository, historyRepo repository.ChatHistoryRepository, systemPrompt string) SessionService {
	return &sessionService{sessions: newSessions(sessionRepo, historyRepo, systemPrompt)}
}

func (s *sessionService) Pages() []string {
	return append([]string(nil), model.Pages...)
}

func (s *sessionService) Snapshot(ctx context.Context, user *model.User) (*model.Session, error) {
	return s.sessions.load(ctx, user)
}

func (s *sessionService) SetActiveTab(ctx context.Context, user *model.User, tab string) (*model.Session, error) {
	if !model.IsPage(tab) {
		return nil, ErrUnknownPage
	}
	return s.sessions.update(ctx, user, func(session *model.Session) {
		session.ActiveTab = tab
	})
}

func (s *sessionService) Overview(user *model.User) OverviewDTO {
	return OverviewDTO{
		Welcome:  fmt.Sprintf("Welcome back, %s %s!", user.FirstName, user.LastName),
		Subtitle: "We're glad to see you again. How can we assist you today?",
		Title:    "VyaparGPT - MSME AI Assistant",
		Features: []FeatureCard{
			{Title: "Chat Assistant", Description: "Ask about MSME compliance, loans, HR/legal, marketing, and business ops.", Page: model.PageChatAssistant},
			{Title: "Invoice Generator", Description: "Create and download professional invoices as PDFs.", Page: model.PageInvoiceGenerator},
			{Title: "Document Explainer", Description: "Upload GST/compliance PDFs and get AI explanations.", Page: model.PageExplainDocument},
			{Title: "Legal & HR", Description: "Generate simple Offer Letters, NDAs, and Leave Policies as PDFs.", Page: model.PageLegalDocGen},
			{Title: "Business Help", Description: "Guidance on Udyam, loans/subsidies, GeM/ONDC, trademarks, exports, and more.", Page: model.PageChatAssistant},
		},
		Hint: "Use the sidebar to explore each module. Everything works with free tooling.",
	}
}
