package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"vyapar-go/internal/model"
	"vyapar-go/internal/repository"
	"vyapar-go/pkg/database"
	"vyapar-go/pkg/hash"
	"vyapar-go/pkg/llm"
	"vyapar-go/pkg/tasks"
	"vyapar-go/pkg/token"
)

const testSystemPrompt = "You are VyaparGPT."

type testEnv struct {
	db         *gorm.DB
	users      repository.UserRepository
	tokens     repository.ResetTokenRepository
	history    repository.ChatHistoryRepository
	sessions   repository.SessionRepository
	jwt        *token.JWTManager
	hasher     *hash.Hasher
	dispatcher *fakeDispatcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return &testEnv{
		db:         db,
		users:      repository.NewUserRepository(db),
		tokens:     repository.NewResetTokenRepository(db),
		history:    repository.NewChatHistoryRepository(db),
		sessions:   repository.NewMemorySessionRepository(time.Hour),
		jwt:        token.NewJWTManager("test-secret", 1, 1),
		hasher:     hash.NewHasher(bcrypt.MinCost),
		dispatcher: &fakeDispatcher{},
	}
}

func (e *testEnv) userService() UserService {
	return NewUserService(UserServiceDeps{
		Users:        e.users,
		ResetTokens:  e.tokens,
		Sessions:     e.sessions,
		History:      e.history,
		JWT:          e.jwt,
		Hasher:       e.hasher,
		Dispatcher:   e.dispatcher,
		SystemPrompt: testSystemPrompt,
	})
}

// createUser 直接写库，绕开 bcrypt 以加快测试。
func (e *testEnv) createUser(t *testing.T, username, email string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Password: "x", FirstName: "Anil", LastName: "Kumar", Email: email}
	require.NoError(t, e.users.Create(u))
	return u
}

type fakeDispatcher struct {
	mu    sync.Mutex
	tasks []tasks.PasswordResetTask
	err   error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, task tasks.PasswordResetTask) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.tasks = append(d.tasks, task)
	return nil
}

// fakeLLM 记录收到的消息，按 chunks 回复。
type fakeLLM struct {
	chunks   []string
	err      error
	received [][]llm.Message
}

func (f *fakeLLM) reply() string {
	out := ""
	for _, c := range f.chunks {
		out += c
	}
	return out
}

func (f *fakeLLM) Complete(_ context.Context, msgs []llm.Message, _ *llm.GenerationParams) (string, error) {
	f.received = append(f.received, append([]llm.Message(nil), msgs...))
	if f.err != nil {
		return "", f.err
	}
	return f.reply(), nil
}

func (f *fakeLLM) StreamChatMessages(_ context.Context, msgs []llm.Message, _ *llm.GenerationParams, w llm.MessageWriter) error {
	f.received = append(f.received, append([]llm.Message(nil), msgs...))
	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := w.WriteMessage(websocket.TextMessage, []byte(c)); err != nil {
			return err
		}
	}
	return nil
}

type recordingWriter struct {
	chunks []string
}

func (w *recordingWriter) WriteMessage(_ int, data []byte) error {
	w.chunks = append(w.chunks, string(data))
	return nil
}

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) ExtractText(_ context.Context, r io.Reader, _ string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	return f.text, f.err
}

type fakeArchive struct {
	objects map[string][]byte
	err     error
}

func (a *fakeArchive) Put(_ context.Context, objectName string, data []byte, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	if a.objects == nil {
		a.objects = make(map[string][]byte)
	}
	a.objects[objectName] = data
	return "http://minio.local/" + objectName, nil
}

type fakeIndex struct {
	docs []model.ExplainedDocument
	err  error
}

func (i *fakeIndex) IndexDocument(_ context.Context, doc model.ExplainedDocument) error {
	if i.err != nil {
		return i.err
	}
	i.docs = append(i.docs, doc)
	return nil
}

func (i *fakeIndex) Search(_ context.Context, userID uint, _ string, _ int) ([]model.SearchResponseDTO, error) {
	var out []model.SearchResponseDTO
	for _, d := range i.docs {
		if d.UserID == userID {
			out = append(out, model.SearchResponseDTO{DocID: d.DocID, FileName: d.FileName})
		}
	}
	return out, nil
}

var errBoom = errors.New("boom")
