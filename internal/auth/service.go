// Package auth はローカル認証とOAuth認証、セッションプリンシパルの変換を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

// Service は認証に関するビジネスロジックを提供する。
// ストラテジーは生成時に確定し、以降は読み取り専用となる。
type Service struct {
	registry   *Registry
	users      repository.UserRepository
	strategies map[string]Strategy
}

// NewService はServiceを生成する。
// ローカル認証と、registryに登録された各プロバイダーのOAuthStrategyを登録する。
func NewService(registry *Registry, users repository.UserRepository, identities repository.IdentityRepository) *Service {
	strategies := map[string]Strategy{}

	local := NewLocalStrategy(users)
	strategies[local.Name()] = local

	for _, name := range registry.Names() {
		provider, _ := registry.Lookup(name)
		strategies[name] = NewOAuthStrategy(provider, users, identities)
	}

	return &Service{
		registry:   registry,
		users:      users,
		strategies: strategies,
	}
}

// Authenticate は指定ストラテジーで資格情報を検証する。
// 未登録のストラテジー名の場合はErrUnknownStrategyを返す。
func (s *Service) Authenticate(ctx context.Context, strategy string, cred Credentials) (*model.User, error) {
	st, ok := s.strategies[strategy]
	if !ok {
		return nil, fmt.Errorf("%q: %w", strategy, ErrUnknownStrategy)
	}
	return st.Authenticate(ctx, cred)
}

// LoginLocal はメールアドレスとパスワードでログインする。
func (s *Service) LoginLocal(ctx context.Context, email, password string) (*model.User, error) {
	return s.Authenticate(ctx, StrategyLocal, Credentials{Email: email, Password: password})
}

// LoginURL はプロバイダーの認可画面URLを返す。
// 未登録の場合はErrUnknownStrategy、認証情報未設定の場合はErrProviderNotConfiguredを返す。
func (s *Service) LoginURL(provider, state string) (string, error) {
	p, err := s.registry.Lookup(provider)
	if err != nil {
		return "", err
	}
	if !p.Configured() {
		return "", fmt.Errorf("%s: %w", provider, ErrProviderNotConfigured)
	}
	return p.AuthCodeURL(state), nil
}

// HandleCallback はOAuthコールバックの認可コードからユーザーを特定する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを作成する。
func (s *Service) HandleCallback(ctx context.Context, provider, code string) (*model.User, error) {
	if _, err := s.registry.Lookup(provider); err != nil {
		return nil, err
	}
	return s.Authenticate(ctx, provider, Credentials{Code: code})
}

// SerializeUser はセッションに保存するプリンシパル（ユーザーID）を返す。
func (s *Service) SerializeUser(user *model.User) string {
	return user.ID
}

// DeserializeUser はプリンシパルからユーザーを復元する。
// ユーザーが存在しない場合は(nil, nil)を返し、リクエストは未認証として続行される。
// 参照自体の失敗はエラーとして返す。
func (s *Service) DeserializeUser(ctx context.Context, id string) (*model.User, error) {
	slog.Debug("will deserialize user", slog.String("user_id", id))

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		slog.Debug("deserialize did fail", slog.String("user_id", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to deserialize user: %w", err)
	}
	if user == nil {
		slog.Debug("deserialize retrieved null user", slog.String("user_id", id))
		return nil, nil
	}

	slog.Debug("deserialize did ok", slog.String("user_id", id))
	return user, nil
}
