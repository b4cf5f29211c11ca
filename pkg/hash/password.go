// Package hash 负责密码的哈希与校验。
package hash

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes 是 bcrypt 能处理的最大密码长度。
const MaxPasswordBytes = 72

var (
	// ErrMismatch 表示密码与哈希不匹配。
	ErrMismatch = errors.New("password does not match")
	// ErrPasswordTooLong 表示密码超过 MaxPasswordBytes 字节。
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// Hasher 使用 bcrypt 计算密码哈希。
type Hasher struct {
	cost int
}

// NewHasher 创建一个 Hasher，cost 超出 bcrypt 允许范围时使用默认值。
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// HashPassword 返回密码的 bcrypt 哈希，密码过长时返回 ErrPasswordTooLong。
func (h *Hasher) HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword 校验密码，不匹配时返回 ErrMismatch。
func (h *Hasher) CheckPassword(hashed, password string) error {
	if len(password) > MaxPasswordBytes {
		// 不可能通过 HashPassword 设置过这样的密码
		return ErrMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	return nil
}
