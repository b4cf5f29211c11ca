package service

import (
	"context"
	"errors"
	"fmt"

	"vyapar-go/internal/model"
	"vyapar-go/internal/repository"
	"vyapar-go/pkg/log"
)

// ConversationService 定义了对话历史相关的业务逻辑接口。
type ConversationService interface {
	GetConversationHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error)
	ClearHistory(ctx context.Context, user *model.User) (int64, error)
}

type conversationService struct {
	sessions *sessions
	history  repository.ChatHistoryRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(sessionRepo repository.SessionRepository, historyRepo repository.ChatHistoryRepository, systemPrompt string) ConversationService {
	return &conversationService{
		sessions: newSessions(sessionRepo, historyRepo, systemPrompt),
		history:  historyRepo,
	}
}

// GetConversationHistory 返回用户的完整聊天记录，第一条总是 system 消息。
func (s *conversationService) GetConversationHistory(_ context.Context, userID uint) ([]model.ChatMessage, error) {
	return s.sessions.transcript(userID)
}

// ClearHistory 删除用户的全部聊天记录，并把会话缓冲区重置为只含 system 消息。
func (s *conversationService) ClearHistory(ctx context.Context, user *model.User) (int64, error) {
	deleted, err := s.history.DeleteByUser(user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear chat history: %w", err)
	}

	// 只刷新已存在的会话，不为未登录过的账号创建会话
	_, err = s.sessions.repo.Update(ctx, user.ID, s.sessions.mutator(user, nil))
	if err != nil && !errors.Is(err, repository.ErrSessionNotFound) {
		return deleted, err
	}
	log.Infof("[ConversationService] 已清空聊天记录, userID: %d, 条数: %d", user.ID, deleted)
	return deleted, nil
}
