// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"vyapar-go/internal/model"
	"vyapar-go/internal/repository"
	"vyapar-go/pkg/hash"
	"vyapar-go/pkg/log"
	"vyapar-go/pkg/tasks"
	"vyapar-go/pkg/token"
)

// RegisterInput 是注册所需的字段，Email 与 Phone 可为空。
type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// LoginResult 是登录成功后返回的令牌与会话。
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *model.User
	Session      *model.Session
}

// ForgotPasswordResult 描述重置令牌的交付方式。
// 账号有邮箱时令牌通过邮件发送，EmailSent 为 true 且 Token 为空；否则直接返回 Token。
type ForgotPasswordResult struct {
	EmailSent bool
	Token     string
	ExpiresAt time.Time
}

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(in RegisterInput) (*model.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	GetProfile(username string) (*model.User, error)
	Logout(ctx context.Context, tokenString string) error
	RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
	ForgotPassword(ctx context.Context, username string) (*ForgotPasswordResult, error)
	ValidateResetToken(resetToken string) (*model.User, error)
	ResetPassword(resetToken, newPassword, confirmPassword string) error
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo      repository.UserRepository
	tokenRepo     repository.ResetTokenRepository
	sessionRepo   repository.SessionRepository
	sessions      *sessions
	jwtManager    *token.JWTManager
	hasher        *hash.Hasher
	dispatcher    tasks.Dispatcher
	resetTokenTTL time.Duration
	now           func() time.Time
}

// UserServiceDeps 汇总了 UserService 的依赖。
type UserServiceDeps struct {
	Users         repository.UserRepository
	ResetTokens   repository.ResetTokenRepository
	Sessions      repository.SessionRepository
	History       repository.ChatHistoryRepository
	JWT           *token.JWTManager
	Hasher        *hash.Hasher
	Dispatcher    tasks.Dispatcher
	SystemPrompt  string
	ResetTokenTTL time.Duration
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(d UserServiceDeps) UserService {
	ttl := d.ResetTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &userService{
		userRepo:      d.Users,
		tokenRepo:     d.ResetTokens,
		sessionRepo:   d.Sessions,
		sessions:      newSessions(d.Sessions, d.History, d.SystemPrompt),
		jwtManager:    d.JWT,
		hasher:        d.Hasher,
		dispatcher:    d.Dispatcher,
		resetTokenTTL: ttl,
		now:           time.Now,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(in RegisterInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}
	if len(in.Password) > hash.MaxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	// 1. 检查用户名是否已存在；并发注册由唯一索引兜底
	exists, err := s.userRepo.ExistsByUsername(in.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := s.hasher.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	newUser := &model.User{
		Username:  in.Username,
		Password:  hashedPassword,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
	}
	if err := s.userRepo.Create(newUser); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	log.Infof("[UserService] 用户注册成功, username: %s", newUser.Username)
	return newUser, nil
}

// Login 处理用户登录的业务逻辑，成功后创建会话并回放聊天记录。
func (s *userService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	// 1. 查找用户，用户名与注册时一样去掉首尾空白
	user, err := s.userRepo.FindByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// 2. 验证密码
	if err := s.hasher.CheckPassword(user.Password, password); err != nil {
		if errors.Is(err, hash.ErrMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// 3. 生成 access token 和 refresh token，二者共享本次登录的 sessionID
	accessToken, refreshToken, err := s.jwtManager.GenerateTokenPair(user.ID, user.Username, uuid.NewString())
	if err != nil {
		return nil, err
	}

	// 4. 创建会话
	session, err := s.sessions.create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &LoginResult{AccessToken: accessToken, RefreshToken: refreshToken, User: user, Session: session}, nil
}

// GetProfile 根据用户名获取用户详细信息。
func (s *userService) GetProfile(username string) (*model.User, error) {
	user, err := s.userRepo.FindByUsername(username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// Logout 吊销 access token（按其剩余有效期）与整次登录，并删除会话。
// 登录被吊销后，同一次登录签发的 refresh token 不能再换取新令牌。
func (s *userService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	if err := s.sessionRepo.RevokeToken(ctx, tokenString, claims.Remaining(s.now())); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if claims.SessionID != "" {
		key := token.SessionRevocationKey(claims.SessionID)
		if err := s.sessionRepo.RevokeToken(ctx, key, s.jwtManager.RefreshTokenDuration()); err != nil {
			return fmt.Errorf("failed to revoke session: %w", err)
		}
	}
	return s.sessionRepo.Delete(ctx, claims.UserID)
}

// RefreshToken 验证 refresh token 并签发新的 access token 和 refresh token，新令牌沿用原登录的 sessionID。
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.jwtManager.VerifyRefreshToken(refreshTokenString)
	if err != nil {
		return "", "", ErrInvalidRefreshToken
	}
	if claims.SessionID != "" {
		revoked, err := s.sessionRepo.IsTokenRevoked(ctx, token.SessionRevocationKey(claims.SessionID))
		if err != nil {
			return "", "", fmt.Errorf("failed to check session revocation: %w", err)
		}
		if revoked {
			return "", "", ErrInvalidRefreshToken
		}
	}

	user, err := s.userRepo.FindByID(claims.UserID)
	if err != nil {
		return "", "", ErrUserNotFound
	}

	return s.jwtManager.GenerateTokenPair(user.ID, user.Username, claims.SessionID)
}

// ForgotPassword 为账号签发一个重置令牌。
func (s *userService) ForgotPassword(ctx context.Context, username string) (*ForgotPasswordResult, error) {
	user, err := s.userRepo.FindByUsername(strings.TrimSpace(username))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	resetToken := &model.PasswordResetToken{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.resetTokenTTL),
	}
	if err := s.tokenRepo.Create(resetToken); err != nil {
		return nil, fmt.Errorf("failed to create reset token: %w", err)
	}

	if user.Email == "" {
		// 没有邮箱时只能把令牌直接交给调用方
		return &ForgotPasswordResult{Token: resetToken.Token, ExpiresAt: resetToken.ExpiresAt}, nil
	}

	task := tasks.PasswordResetTask{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Token:     resetToken.Token,
		ExpiresAt: resetToken.ExpiresAt,
	}
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		log.Errorf("[UserService] 投递重置邮件任务失败, username: %s, error: %v", user.Username, err)
		return nil, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return &ForgotPasswordResult{EmailSent: true, ExpiresAt: resetToken.ExpiresAt}, nil
}

// ValidateResetToken 返回令牌所属的账号，令牌无效时返回 ErrInvalidResetToken。
func (s *userService) ValidateResetToken(resetToken string) (*model.User, error) {
	t, err := s.tokenRepo.FindValid(resetToken, s.now())
	if errors.Is(err, repository.ErrTokenNotRedeemable) {
		return nil, ErrInvalidResetToken
	}
	if err != nil {
		return nil, err
	}
	return &t.User, nil
}

// ResetPassword 兑换令牌并更新密码。同一个令牌只能成功兑换一次。
func (s *userService) ResetPassword(resetToken, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if newPassword == "" {
		return ErrMissingCredentials
	}
	// 先哈希再兑换，密码不合法时令牌保持可用
	hashedPassword, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user, err := s.tokenRepo.Redeem(resetToken, hashedPassword, s.now())
	if errors.Is(err, repository.ErrTokenNotRedeemable) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return err
	}
	log.Infof("[UserService] 密码已重置, username: %s", user.Username)
	return nil
}
