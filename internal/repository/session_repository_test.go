package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vyapar-go/internal/model"
)

func TestMemorySessionRepository_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(time.Hour)

	_, err := repo.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	s := model.NewSession(&model.User{ID: 1, Username: "anil"}, []model.ChatMessage{{Role: model.RoleSystem, Content: "sys"}})
	s.InvoiceDraft = model.InvoiceDraft{Customer: "Anil", Amount: 5000}
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Anil", got.InvoiceDraft.Customer)
	assert.Len(t, got.Messages, 1)

	// 修改副本不会影响已存储的会话
	got.ActiveTab = model.PageChatAssistant
	again, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PageOverview, again.ActiveTab)

	require.NoError(t, repo.Delete(ctx, 1))
	_, err = repo.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(time.Minute).(*memorySessionRepository)
	now := time.Now()
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Save(ctx, &model.Session{UserID: 3}))
	require.NoError(t, repo.RevokeToken(ctx, "tok", 30*time.Second))

	revoked, err := repo.IsTokenRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	_, err = repo.Get(ctx, 3)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	revoked, err = repo.IsTokenRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemorySessionRepository_RevokeWithoutTTLIsNoop(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(time.Hour)
	require.NoError(t, repo.RevokeToken(ctx, "tok", 0))
	revoked, err := repo.IsTokenRevoked(ctx, "tok")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemorySessionRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(time.Hour)

	_, err := repo.Update(ctx, 1, func(*model.Session) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, repo.Save(ctx, model.NewSession(&model.User{ID: 1, Username: "anil"}, nil)))

	got, err := repo.Update(ctx, 1, func(s *model.Session) error {
		s.ActiveTab = model.PageLegalDocGen
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.PageLegalDocGen, got.ActiveTab)

	// fn 出错时不写回
	boom := errors.New("boom")
	_, err = repo.Update(ctx, 1, func(s *model.Session) error {
		s.ActiveTab = model.PageChatAssistant
		return boom
	})
	assert.ErrorIs(t, err, boom)
	stored, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PageLegalDocGen, stored.ActiveTab)
}

func TestMemorySessionRepository_SaveIfAbsent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(time.Hour)
	user := &model.User{ID: 1, Username: "anil"}

	first := model.NewSession(user, nil)
	first.ActiveTab = model.PageChatAssistant
	saved, err := repo.SaveIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = repo.SaveIfAbsent(ctx, model.NewSession(user, nil))
	require.NoError(t, err)
	assert.False(t, saved)

	stored, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.PageChatAssistant, stored.ActiveTab)
}

func TestMemorySessionRepository_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemorySessionRepository(time.Hour)
	require.NoError(t, repo.Save(ctx, model.NewSession(&model.User{ID: 1, Username: "anil"}, nil)))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Update(ctx, 1, func(s *model.Session) error {
				s.Messages = append(s.Messages, model.ChatMessage{Role: model.RoleUser, Content: "hi"})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, stored.Messages, n)
}
