// Package token 提供了用于生成和验证 JSON Web Tokens (JWT) 的功能。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 令牌类型，防止 refresh token 被当作 access token 使用。
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrWrongTokenType 表示令牌类型与预期不符。
var ErrWrongTokenType = errors.New("wrong token type")

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey       []byte
	accessTokenDur  time.Duration
	refreshTokenDur time.Duration
}

// CustomClaims 定义了我们想要在 JWT 中存储的自定义数据。
// SessionID 标识一次登录，同一次登录及其后续刷新签发的令牌共享它。
type CustomClaims struct {
	UserID    uint   `json:"userId"`
	Username  string `json:"username"`
	TokenType string `json:"typ"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
// accessTokenExpireHours: access token 的过期时间（小时）。
// refreshTokenExpireDays: refresh token 的过期时间（天）。
func NewJWTManager(secret string, accessTokenExpireHours, refreshTokenExpireDays int) *JWTManager {
	return &JWTManager{
		secretKey:       []byte(secret),
		accessTokenDur:  time.Hour * time.Duration(accessTokenExpireHours),
		refreshTokenDur: time.Duration(refreshTokenExpireDays) * 24 * time.Hour,
	}
}

func (m *JWTManager) sign(userID uint, username, sessionID, typ string, dur time.Duration) (string, error) {
	now := time.Now()
	claims := CustomClaims{
		UserID:    userID,
		Username:  username,
		TokenType: typ,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(dur)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
}

// GenerateToken 生成一个新的 access token。
func (m *JWTManager) GenerateToken(userID uint, username string) (string, error) {
	return m.sign(userID, username, "", TypeAccess, m.accessTokenDur)
}

// GenerateRefreshToken 生成一个新的 refresh token，过期时间更长。
func (m *JWTManager) GenerateRefreshToken(userID uint, username string) (string, error) {
	return m.sign(userID, username, "", TypeRefresh, m.refreshTokenDur)
}

// GenerateTokenPair 为一次登录签发 access token 和 refresh token，两者都携带 sessionID。
func (m *JWTManager) GenerateTokenPair(userID uint, username, sessionID string) (accessToken, refreshToken string, err error) {
	accessToken, err = m.sign(userID, username, sessionID, TypeAccess, m.accessTokenDur)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = m.sign(userID, username, sessionID, TypeRefresh, m.refreshTokenDur)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// RefreshTokenDuration 返回 refresh token 的有效期，也是整次登录可能存活的最长时间。
func (m *JWTManager) RefreshTokenDuration() time.Duration {
	return m.refreshTokenDur
}

// SessionRevocationKey 返回整次登录被吊销时使用的吊销键。
func SessionRevocationKey(sessionID string) string {
	return "sid:" + sessionID
}

// VerifyToken 验证 access token，签名不匹配、过期或类型不符时返回错误。
func (m *JWTManager) VerifyToken(tokenString string) (*CustomClaims, error) {
	return m.verify(tokenString, TypeAccess)
}

// VerifyRefreshToken 验证 refresh token。
func (m *JWTManager) VerifyRefreshToken(tokenString string) (*CustomClaims, error) {
	return m.verify(tokenString, TypeRefresh)
}

func (m *JWTManager) verify(tokenString, typ string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// Remaining 返回令牌距离过期的剩余时间，用于吊销记录的 TTL。
func (c *CustomClaims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
