package repository

import (
	"gorm.io/gorm"

	"vyapar-go/internal/model"
)

// ChatHistoryRepository 定义了按账号追加保存的聊天记录操作。
type ChatHistoryRepository interface {
	Append(msg *model.ChatMessage) error
	// ListByUser 按写入顺序返回该账号的全部消息。
	ListByUser(userID uint) ([]model.ChatMessage, error)
	DeleteByUser(userID uint) (int64, error)
}

type chatHistoryRepository struct {
	db *gorm.DB
}

// NewChatHistoryRepository 创建一个新的 ChatHistoryRepository 实例。
func NewChatHistoryRepository(db *gorm.DB) ChatHistoryRepository {
	return &chatHistoryRepository{db: db}
}

func (r *chatHistoryRepository) Append(msg *model.ChatMessage) error {
	return r.db.Create(msg).Error
}

func (r *chatHistoryRepository) ListByUser(userID uint) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	// 同一秒内写入的消息依靠自增 ID 保持顺序
	err := r.db.Where("user_id = ?", userID).
		Order("timestamp ASC").Order("id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *chatHistoryRepository) DeleteByUser(userID uint) (int64, error) {
	res := r.db.Where("user_id = ?", userID).Delete(&model.ChatMessage{})
	return res.RowsAffected, res.Error
}
