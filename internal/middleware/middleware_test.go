package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vyapar-go/internal/model"
	"vyapar-go/internal/service"
	"vyapar-go/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimit(t *testing.T) {
	store := NewLimiterStore(1, 2, time.Hour)
	defer store.Stop()

	r := gin.New()
	r.POST("/login", RateLimit(store), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 其他客户端不受影响
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

type stubUserService struct {
	service.UserService
	users map[string]*model.User
}

func (s stubUserService) GetProfile(username string) (*model.User, error) {
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	return nil, service.ErrUserNotFound
}

type stubRevocations map[string]bool

func (s stubRevocations) IsTokenRevoked(_ context.Context, token string) (bool, error) {
	return s[token], nil
}

func TestAuthMiddleware(t *testing.T) {
	jwtManager := token.NewJWTManager("secret", 1, 1)
	users := stubUserService{users: map[string]*model.User{"anil": {ID: 1, Username: "anil"}}}
	valid, err := jwtManager.GenerateToken(1, "anil")
	require.NoError(t, err)
	refresh, err := jwtManager.GenerateRefreshToken(1, "anil")
	require.NoError(t, err)
	ghost, err := jwtManager.GenerateToken(2, "ghost")
	require.NoError(t, err)
	revoked := stubRevocations{}

	r := gin.New()
	r.GET("/me", AuthMiddleware(jwtManager, users, revoked), func(c *gin.Context) {
		u := c.MustGet(ContextUserKey).(*model.User)
		c.String(http.StatusOK, u.Username)
	})

	call := func(header string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		return w
	}

	w := call("Bearer " + valid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anil", w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call(valid).Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+refresh).Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+ghost).Code)

	revoked[valid] = true
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+valid).Code)

	loginAccess, _, err := jwtManager.GenerateTokenPair(1, "anil", "login-1")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, call("Bearer "+loginAccess).Code)
	revoked[token.SessionRevocationKey("login-1")] = true
	assert.Equal(t, http.StatusUnauthorized, call("Bearer "+loginAccess).Code)
}

func TestRequestLogger_PassesBodyThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/echo", func(c *gin.Context) {
		var body struct {
			Text string `json:"text"`
		}
		require.NoError(t, c.ShouldBindJSON(&body))
		c.String(http.StatusOK, body.Text)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, "hello", w.Body.String())
}
