// Package auth はユーザー登録・ログイン・プロフィール更新のドメインロジックを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/secondchance/internal/model"
	"github.com/hitoshi/secondchance/internal/repository"
)

// TokenIssuer は識別トークンの発行インターフェース。
// 全フローで同一のIssuerを使い、ペイロード形式と有効期限を統一する。
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// MetricsCollector は認証イベントのメトリクス収集インターフェース。
type MetricsCollector interface {
	RecordRegistration()
	RecordLogin(outcome string)
}

// RegisterResult は登録成功時の結果。パスワードハッシュは含まない。
type RegisterResult struct {
	Email string
	Token string
}

// LoginResult はログイン成功時の結果。パスワードハッシュは含まない。
type LoginResult struct {
	Token       string
	DisplayName string
	Email       string
}

// UpdateResult はプロフィール更新成功時の結果。
type UpdateResult struct {
	Token string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users   repository.UserRepository
	hasher  PasswordHasher
	tokens  TokenIssuer
	metrics MetricsCollector
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	metrics MetricsCollector,
) *Service {
	return &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		metrics: metrics,
	}
}

// Register は新規ユーザーを登録し、トークンを発行する。
//
// 既存メールアドレスの事前チェックは早期リターンのための最適化であり、
// 一意性の最終判定はストアのユニークインデックス。挿入時の重複エラーも
// 同じ409（EmailConflict）に変換する。
func (s *Service) Register(ctx context.Context, email, password string) (*RegisterResult, error) {
	if email == "" {
		return nil, model.NewValidationError("メールアドレスは必須です")
	}
	if password == "" {
		return nil, model.NewValidationError("パスワードは必須です")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailConflictError()
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailConflictError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	tok, err := s.tokens.Issue(user.ID.Hex(), user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	// パスワードとハッシュはログに出さない
	slog.Info("user registered successfully",
		slog.String("email", email),
	)
	if s.metrics != nil {
		s.metrics.RecordRegistration()
	}

	return &RegisterResult{
		Email: user.Email,
		Token: tok,
	}, nil
}

// Login は資格情報を検証し、トークンを発行する。
//
// 未登録メールアドレス（404）とパスワード不一致（401）は意図的に
// 区別して返す。ユーザー存在の漏えいを許容する設計判断であり、
// 硬化はスコープ外。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.recordLogin("not_found")
		return nil, model.NewUserNotFoundError()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		slog.Warn("login failed: password mismatch",
			slog.String("email", email),
		)
		s.recordLogin("invalid_credentials")
		return nil, model.NewInvalidCredentialsError()
	}

	tok, err := s.tokens.Issue(user.ID.Hex(), user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in",
		slog.String("email", email),
	)
	s.recordLogin("success")

	return &LoginResult{
		Token:       tok,
		DisplayName: user.DisplayName(),
		Email:       user.Email,
	}, nil
}

// UpdateProfile は表示名を更新し、トークンを再発行する。
//
// identityEmailは検証済みトークンから取り出した値であること。
// クライアントが自称するヘッダ値を直接渡してはならない。
// 更新は表示名と更新日時のみの部分更新で、他フィールドには触れない。
func (s *Service) UpdateProfile(ctx context.Context, identityEmail, newName string) (*UpdateResult, error) {
	if newName == "" {
		return nil, model.NewValidationError("名前は必須です")
	}

	user, err := s.users.FindByEmail(ctx, identityEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if err := s.users.UpdateName(ctx, user.ID, newName, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to update user name: %w", err)
	}

	tok, err := s.tokens.Issue(user.ID.Hex(), user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user profile updated",
		slog.String("email", identityEmail),
	)

	return &UpdateResult{Token: tok}, nil
}

func (s *Service) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}
