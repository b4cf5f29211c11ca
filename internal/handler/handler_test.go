package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vyapar-go/internal/repository"
	"vyapar-go/internal/service"
	"vyapar-go/pkg/database"
	"vyapar-go/pkg/hash"
	"vyapar-go/pkg/llm"
	"vyapar-go/pkg/tasks"
	"vyapar-go/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLLM struct {
	chunks []string
}

func (f fakeLLM) Complete(context.Context, []llm.Message, *llm.GenerationParams) (string, error) {
	return strings.Join(f.chunks, ""), nil
}

func (f fakeLLM) StreamChatMessages(_ context.Context, _ []llm.Message, _ *llm.GenerationParams, w llm.MessageWriter) error {
	for _, c := range f.chunks {
		if err := w.WriteMessage(websocket.TextMessage, []byte(c)); err != nil {
			return err
		}
	}
	return nil
}

type fakeExtractor struct{}

func (fakeExtractor) ExtractText(_ context.Context, r io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(r)
	return string(b), err
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, tasks.PasswordResetTask) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	users := repository.NewUserRepository(db)
	history := repository.NewChatHistoryRepository(db)
	sessions := repository.NewMemorySessionRepository(time.Hour)
	jwtManager := token.NewJWTManager("test-secret", 1, 1)
	client := fakeLLM{chunks: []string{"Udyam ", "registration is free."}}
	const prompt = "You are VyaparGPT."

	return NewRouter(RouterDeps{
		Users: service.NewUserService(service.UserServiceDeps{
			Users:        users,
			ResetTokens:  repository.NewResetTokenRepository(db),
			Sessions:     sessions,
			History:      history,
			JWT:          jwtManager,
			Hasher:       hash.NewHasher(bcrypt.MinCost),
			Dispatcher:   noopDispatcher{},
			SystemPrompt: prompt,
		}),
		Sessions:      service.NewSessionService(sessions, history, prompt),
		Chat:          service.NewChatService(sessions, history, prompt, client, nil),
		Conversations: service.NewConversationService(sessions, history, prompt),
		Documents: service.NewDocumentService(service.DocumentServiceDeps{
			Sessions:       sessions,
			History:        history,
			SystemPrompt:   prompt,
			DocumentPrompt: "Explain this document.",
			Extractor:      fakeExtractor{},
			LLM:            client,
		}),
		Invoices:    service.NewInvoiceService(sessions, history, prompt, nil),
		Legal:       service.NewLegalService(nil),
		JWT:         jwtManager,
		Revocations: sessions,
	})
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, h http.Handler, method, path, accessToken string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func registerAndLogin(t *testing.T, h http.Handler) string {
	t.Helper()
	w, env := doJSON(t, h, http.MethodPost, "/api/v1/users/register", "", gin.H{
		"username": "anil", "password": "pw", "firstName": "Anil", "lastName": "Kumar",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Registration successful!", env.Message)

	w, env = doJSON(t, h, http.MethodPost, "/api/v1/users/login", "", gin.H{"username": "anil", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Welcome Anil Kumar!", env.Message)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func TestAuthFlow(t *testing.T) {
	h := newTestRouter(t)
	accessToken := registerAndLogin(t, h)

	w, env := doJSON(t, h, http.MethodPost, "/api/v1/users/register", "", gin.H{"username": "anil", "password": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Username already exists.", env.Message)

	w, env = doJSON(t, h, http.MethodPost, "/api/v1/users/login", "", gin.H{"username": "anil", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid username or password.", env.Message)

	w, _ = doJSON(t, h, http.MethodGet, "/api/v1/users/me", accessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/users/logout", accessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, h, http.MethodGet, "/api/v1/users/me", accessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRejectedAfterLogout(t *testing.T) {
	h := newTestRouter(t)
	registerAndLogin(t, h)

	w, env := doJSON(t, h, http.MethodPost, "/api/v1/users/login", "", gin.H{"username": "anil", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))

	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/auth/refreshToken", "", gin.H{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/users/logout", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, h, http.MethodPost, "/api/v1/auth/refreshToken", "", gin.H{"refreshToken": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid refresh token", env.Message)
}

func TestRegisterPasswordTooLong(t *testing.T) {
	h := newTestRouter(t)

	w, env := doJSON(t, h, http.MethodPost, "/api/v1/users/register", "", gin.H{
		"username": "anil", "password": strings.Repeat("p", 80),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "password must be at most 72 bytes", env.Message)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newTestRouter(t)
	registerAndLogin(t, h)

	w, env := doJSON(t, h, http.MethodPost, "/api/v1/auth/forgot-password", "", gin.H{"username": "ghost"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Username not found", env.Message)

	w, env = doJSON(t, h, http.MethodPost, "/api/v1/auth/forgot-password", "", gin.H{"username": "anil"})
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)

	w, _ = doJSON(t, h, http.MethodGet, "/api/v1/auth/password-reset?token="+data.Token, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, h, http.MethodPost, "/api/v1/auth/password-reset?token="+data.Token, "", gin.H{
		"newPassword": "a", "confirmPassword": "b",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Passwords do not match!", env.Message)

	w, env = doJSON(t, h, http.MethodPost, "/api/v1/auth/password-reset", "", gin.H{
		"token": data.Token, "newPassword": "new", "confirmPassword": "new",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Password updated successfully! Please login with your new password.", env.Message)

	w, env = doJSON(t, h, http.MethodPost, "/api/v1/auth/password-reset", "", gin.H{
		"token": data.Token, "newPassword": "again", "confirmPassword": "again",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired reset token", env.Message)

	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/users/login", "", gin.H{"username": "anil", "password": "new"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChatAndInvoice(t *testing.T) {
	h := newTestRouter(t)
	accessToken := registerAndLogin(t, h)

	w, env := doJSON(t, h, http.MethodPost, "/api/v1/chat/messages", accessToken, gin.H{"message": "Generate invoice for Anil ₹5000"})
	require.Equal(t, http.StatusOK, w.Code)
	var reply struct {
		Reply string `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reply))
	assert.Equal(t, "Sure! Taking you to the Invoice Generator for Anil with amount ₹5,000.00...", reply.Reply)

	w, env = doJSON(t, h, http.MethodGet, "/api/v1/invoices/draft", accessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"customer":"Anil","amount":5000}`, string(env.Data))

	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/invoices", accessToken, gin.H{"customer": "Anil", "amount": 5000})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "invoice_Anil.pdf")

	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/invoices", accessToken, gin.H{"customer": "Anil", "amount": -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = doJSON(t, h, http.MethodGet, "/api/v1/users/conversation", accessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []struct {
		Role string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].Role)

	w, _ = doJSON(t, h, http.MethodDelete, "/api/v1/users/conversation", accessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionRoutes(t *testing.T) {
	h := newTestRouter(t)
	accessToken := registerAndLogin(t, h)

	w, env := doJSON(t, h, http.MethodGet, "/api/v1/pages", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["Overview","Chat Assistant","Invoice Generator","Explain Document","Legal Doc Generator"]`, string(env.Data))

	w, _ = doJSON(t, h, http.MethodPut, "/api/v1/session/tab", accessToken, gin.H{"tab": "Nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, h, http.MethodPut, "/api/v1/session/tab", accessToken, gin.H{"tab": "Legal Doc Generator"})
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, h, http.MethodGet, "/api/v1/session", accessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"activeTab":"Legal Doc Generator"`)

	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/legal", accessToken, gin.H{"docType": "NDA", "name": "Sharma"})
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = doJSON(t, h, http.MethodPost, "/api/v1/legal", accessToken, gin.H{"docType": "Will"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func uploadRequest(t *testing.T, path, accessToken, fileName, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+accessToken)
	return req
}

func TestDocumentExplain(t *testing.T) {
	h := newTestRouter(t)
	accessToken := registerAndLogin(t, h)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "/api/v1/documents/explain", accessToken, "notice.pdf", "GST notice text"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Udyam registration is free.")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "/api/v1/documents/explain", accessToken, "notes.txt", "text"))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "/api/v1/documents/explain?stream=true", accessToken, "notice.pdf", "GST notice text"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: chunk\ndata: {\"chunk\":\"Udyam \"}")
	assert.Contains(t, body, "event: complete")

	// 未配置 Elasticsearch 时检索不可用
	w2, _ := doJSON(t, h, http.MethodGet, "/api/v1/documents/search?q=gst", accessToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w2.Code)
}

func TestChatWebSocket(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()
	accessToken := registerAndLogin(t, srv.Config.Handler)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/chat/" + accessToken
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("How do I register on Udyam?")))

	var chunks []string
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &frame))
		if frame["type"] == "completion" {
			break
		}
		chunks = append(chunks, frame["chunk"].(string))
	}
	assert.Equal(t, []string{"Udyam ", "registration is free."}, chunks)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/v1/chat/bogus", nil)
	assert.Error(t, err)
}
