package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"vyapar-go/internal/model"
)

var (
	// ErrSessionNotFound 表示会话不存在或已过期。
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionConflict 表示会话在多次重试后仍被并发修改。
	ErrSessionConflict = errors.New("session was modified concurrently")
)

// maxUpdateRetries 是乐观锁冲突时的最大重试次数。
const maxUpdateRetries = 10

// SessionRepository 定义了会话上下文与已吊销令牌的存取操作。
type SessionRepository interface {
	Get(ctx context.Context, userID uint) (*model.Session, error)
	Save(ctx context.Context, session *model.Session) error
	// SaveIfAbsent 仅在会话不存在时写入，返回是否写入。
	SaveIfAbsent(ctx context.Context, session *model.Session) (bool, error)
	// Update 原子地读取、修改并写回会话。fn 可能因冲突被调用多次，不应有副作用。
	Update(ctx context.Context, userID uint, fn func(*model.Session) error) (*model.Session, error)
	Delete(ctx context.Context, userID uint) error
	RevokeToken(ctx context.Context, token string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
}

func sessionKey(userID uint) string {
	return fmt.Sprintf("session:%d", userID)
}

func revokedKey(token string) string {
	return "revoked_token:" + token
}

type redisSessionRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewSessionRepository 创建一个基于 Redis 的 SessionRepository 实例。
func NewSessionRepository(redisClient *redis.Client, ttl time.Duration) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, ttl: ttl}
}

// Get 从 Redis 获取会话。
func (r *redisSessionRepository) Get(ctx context.Context, userID uint) (*model.Session, error) {
	jsonData, err := r.redisClient.Get(ctx, sessionKey(userID)).Result()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	var session model.Session
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Save 写入会话并刷新过期时间。
func (r *redisSessionRepository) Save(ctx context.Context, session *model.Session) error {
	session.UpdatedAt = time.Now()
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.redisClient.Set(ctx, sessionKey(session.UserID), jsonData, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) SaveIfAbsent(ctx context.Context, session *model.Session) (bool, error) {
	session.UpdatedAt = time.Now()
	jsonData, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("failed to marshal session: %w", err)
	}
	ok, err := r.redisClient.SetNX(ctx, sessionKey(session.UserID), jsonData, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set session: %w", err)
	}
	return ok, nil
}

// Update 用 WATCH 实现乐观锁：事务提交前会话被其他请求改动时重新读取并重试。
func (r *redisSessionRepository) Update(ctx context.Context, userID uint, fn func(*model.Session) error) (*model.Session, error) {
	key := sessionKey(userID)
	var updated *model.Session
	txf := func(tx *redis.Tx) error {
		jsonData, err := tx.Get(ctx, key).Result()
		if err == redis.Nil {
			return ErrSessionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}
		var session model.Session
		if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		if err := fn(&session); err != nil {
			return err
		}
		session.UpdatedAt = time.Now()
		out, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, r.ttl)
			return nil
		})
		if err == nil {
			updated = &session
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.redisClient.Watch(ctx, txf, key)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrSessionConflict
}

func (r *redisSessionRepository) Delete(ctx context.Context, userID uint) error {
	if err := r.redisClient.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) RevokeToken(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.redisClient.Set(ctx, revokedKey(token), 1, ttl).Err()
}

func (r *redisSessionRepository) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.redisClient.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// memorySessionRepository 在未配置 Redis 时使用，进程重启后会话丢失。
type memorySessionRepository struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemorySessionRepository 创建一个进程内的 SessionRepository 实例。
func NewMemorySessionRepository(ttl time.Duration) SessionRepository {
	return &memorySessionRepository{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (r *memorySessionRepository) load(key string) ([]byte, bool) {
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !r.now().Before(e.expiresAt) {
		delete(r.entries, key)
		return nil, false
	}
	return e.data, true
}

func (r *memorySessionRepository) store(key string, data []byte, ttl time.Duration) {
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.expiresAt = r.now().Add(ttl)
	}
	r.entries[key] = e
}

func (r *memorySessionRepository) Get(_ context.Context, userID uint) (*model.Session, error) {
	r.mu.Lock()
	data, ok := r.load(sessionKey(userID))
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	// 反序列化出一份副本，调用方修改不会影响存储
	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *memorySessionRepository) Save(_ context.Context, session *model.Session) error {
	session.UpdatedAt = r.now()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	r.mu.Lock()
	r.store(sessionKey(session.UserID), data, r.ttl)
	r.mu.Unlock()
	return nil
}

func (r *memorySessionRepository) SaveIfAbsent(_ context.Context, session *model.Session) (bool, error) {
	session.UpdatedAt = r.now()
	data, err := json.Marshal(session)
	if err != nil {
		return false, fmt.Errorf("failed to marshal session: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := sessionKey(session.UserID)
	if _, ok := r.load(key); ok {
		return false, nil
	}
	r.store(key, data, r.ttl)
	return true, nil
}

// Update 在持锁期间完成读改写，同一进程内的并发修改按顺序执行。
func (r *memorySessionRepository) Update(_ context.Context, userID uint, fn func(*model.Session) error) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(userID)
	data, ok := r.load(key)
	if !ok {
		return nil, ErrSessionNotFound
	}
	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if err := fn(&session); err != nil {
		return nil, err
	}
	session.UpdatedAt = r.now()
	out, err := json.Marshal(&session)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	r.store(key, out, r.ttl)
	return &session, nil
}

func (r *memorySessionRepository) Delete(_ context.Context, userID uint) error {
	r.mu.Lock()
	delete(r.entries, sessionKey(userID))
	r.mu.Unlock()
	return nil
}

func (r *memorySessionRepository) RevokeToken(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	r.store(revokedKey(token), nil, ttl)
	r.mu.Unlock()
	return nil
}

func (r *memorySessionRepository) IsTokenRevoked(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.load(revokedKey(token))
	return ok, nil
}
