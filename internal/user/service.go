// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
	"github.com/hitoshi/storefront/internal/security"
)

// パスワード長の制約。bcryptは72バイトを超える入力を扱えない。
const (
	minPasswordLength = 8
	maxPasswordLength = 72
)

// URLValidator はプロフィールURLの検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// RegisterInput はローカルユーザー登録の入力値。
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Description string
	URL         string
}

// Service はユーザー管理のサービス層。
// ローカル認証用ユーザーの登録を提供する。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer security.ProfileSanitizer
	urlGuard  URLValidator
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sanitizer security.ProfileSanitizer,
	urlGuard URLValidator,
) *Service {
	return &Service{
		userRepo:  userRepo,
		sanitizer: sanitizer,
		urlGuard:  urlGuard,
	}
}

// Register はメールアドレスとパスワードでユーザーを登録する。
// メールアドレスは入力された形式のまま保存する（ローカル認証の照合が大文字小文字を区別するため）。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := strings.TrimSpace(in.Email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return nil, model.NewValidationError("メールアドレスの形式が正しくありません")
	}

	if len(in.Password) < minPasswordLength || len(in.Password) > maxPasswordLength {
		return nil, model.NewValidationError(
			fmt.Sprintf("パスワードは%d〜%d文字で入力してください", minPasswordLength, maxPasswordLength))
	}

	profileURL := strings.TrimSpace(in.URL)
	if profileURL != "" && s.urlGuard != nil {
		if err := s.urlGuard.ValidateURL(profileURL); err != nil {
			return nil, model.NewValidationError("URLが不正です")
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         s.sanitize(in.Name),
		Description:  s.sanitize(in.Description),
		URL:          profileURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

func (s *Service) sanitize(text string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(text)
	}
	return s.sanitizer.SanitizeText(text)
}
