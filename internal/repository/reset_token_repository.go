package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"vyapar-go/internal/model"
)

// ErrTokenNotRedeemable 表示令牌不存在、已过期或已被使用。
var ErrTokenNotRedeemable = errors.New("reset token is not redeemable")

// ResetTokenRepository 定义了密码重置令牌的持久化操作。
type ResetTokenRepository interface {
	Create(token *model.PasswordResetToken) error
	// FindValid 返回在 now 时刻未过期且未使用的令牌。
	FindValid(token string, now time.Time) (*model.PasswordResetToken, error)
	// Redeem 在一个事务内兑换令牌：标记为已使用、作废该用户其余令牌并更新密码哈希。
	Redeem(token, passwordHash string, now time.Time) (*model.User, error)
}

type resetTokenRepository struct {
	db *gorm.DB
}

// NewResetTokenRepository 创建一个新的 ResetTokenRepository 实例。
func NewResetTokenRepository(db *gorm.DB) ResetTokenRepository {
	return &resetTokenRepository{db: db}
}

func (r *resetTokenRepository) Create(token *model.PasswordResetToken) error {
	return r.db.Create(token).Error
}

func (r *resetTokenRepository) FindValid(token string, now time.Time) (*model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := r.db.Preload("User").
		Where("token = ? AND used = ? AND expires_at > ?", token, false, now).
		First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotRedeemable
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *resetTokenRepository) Redeem(token, passwordHash string, now time.Time) (*model.User, error) {
	var user model.User
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var t model.PasswordResetToken
		if err := tx.Where("token = ?", token).First(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotRedeemable
			}
			return err
		}

		// 条件更新保证并发提交同一令牌时只有一个能成功
		res := tx.Model(&model.PasswordResetToken{}).
			Where("id = ? AND used = ? AND expires_at > ?", t.ID, false, now).
			Update("used", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ErrTokenNotRedeemable
		}

		if err := tx.Model(&model.PasswordResetToken{}).
			Where("user_id = ? AND used = ?", t.UserID, false).
			Update("used", true).Error; err != nil {
			return err
		}

		if err := tx.Model(&model.User{}).Where("id = ?", t.UserID).
			Update("password", passwordHash).Error; err != nil {
			return err
		}
		return tx.First(&user, t.UserID).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}
