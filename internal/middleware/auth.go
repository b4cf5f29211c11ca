// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vyapar-go/internal/model"
	"vyapar-go/internal/service"
	"vyapar-go/pkg/log"
	"vyapar-go/pkg/token"
)

// 上下文中存放认证信息的键
const (
	ContextUserKey   = "user"
	ContextClaimsKey = "claims"
	ContextTokenKey  = "token"
)

// RevocationChecker 判断 access token 或其所属的登录是否已在登出时被吊销。
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
}

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证其有效性与吊销状态，并将完整的 User 对象存入 Gin 的上下文中。
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService, revocations RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "missing authorization header", "data": nil})
			return
		}

		// Token 以 "Bearer <token>" 的形式提供
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid authorization header format", "data": nil})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		user, claims, ok := Authenticate(c.Request.Context(), jwtManager, userService, revocations, tokenString)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid or expired token", "data": nil})
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextClaimsKey, claims)
		c.Set(ContextTokenKey, tokenString)
		c.Next()
	}
}

// Authenticate 校验 token 并加载用户，供 HTTP 中间件与 WebSocket 握手共用。
func Authenticate(ctx context.Context, jwtManager *token.JWTManager, userService service.UserService, revocations RevocationChecker, tokenString string) (*model.User, *token.CustomClaims, bool) {
	claims, err := jwtManager.VerifyToken(tokenString)
	if err != nil {
		return nil, nil, false
	}

	if revocations != nil {
		revoked, err := revocations.IsTokenRevoked(ctx, tokenString)
		if err != nil {
			log.Errorf("检查 token 吊销状态失败: %v", err)
			return nil, nil, false
		}
		if !revoked && claims.SessionID != "" {
			revoked, err = revocations.IsTokenRevoked(ctx, token.SessionRevocationKey(claims.SessionID))
			if err != nil {
				log.Errorf("检查登录吊销状态失败: %v", err)
				return nil, nil, false
			}
		}
		if revoked {
			return nil, nil, false
		}
	}

	// 使用 claims 中的用户名从数据库获取完整的用户信息
	user, err := userService.GetProfile(claims.Username)
	if err != nil {
		return nil, nil, false
	}
	return user, claims, true
}
