package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

// StrategyLocal はメールアドレスとパスワードによるローカル認証のストラテジー名。
const StrategyLocal = "local"

// Credentials はストラテジーに渡す資格情報。
// ローカル認証はEmailとPassword、OAuthはCode（認可コード）を使用する。
type Credentials struct {
	Email    string
	Password string
	Code     string
}

// Strategy は1つの認証方式を表す。
// 認証に成功した場合はユーザーを返し、資格情報不一致の場合はErrLoginIncorrectを返す。
// それ以外のエラーはインフラ障害として扱う。
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, cred Credentials) (*model.User, error)
}

// LocalStrategy はメールアドレスとパスワードでユーザーを認証する。
type LocalStrategy struct {
	users repository.UserRepository
}

// NewLocalStrategy はLocalStrategyを生成する。
func NewLocalStrategy(users repository.UserRepository) *LocalStrategy {
	return &LocalStrategy{users: users}
}

// Name はストラテジー名を返す。
func (s *LocalStrategy) Name() string { return StrategyLocal }

// Authenticate はメールアドレスでユーザーを検索し、パスワードを検証する。
// メールアドレスは正規化せず保存された形式のまま比較する。
func (s *LocalStrategy) Authenticate(ctx context.Context, cred Credentials) (*model.User, error) {
	slog.Debug("will authenticate user", slog.String("email", cred.Email))

	user, err := s.users.FindByEmail(ctx, cred.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Debug("authenticate user did fail: no such user", slog.String("email", cred.Email))
		return nil, ErrLoginIncorrect
	}
	if !user.HasPassword() {
		slog.Debug("authenticate user did fail: no local password", slog.String("email", cred.Email))
		return nil, ErrLoginIncorrect
	}

	ok, err := CheckPassword(user.PasswordHash, cred.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Debug("authenticate user did fail: bad password", slog.String("email", cred.Email))
		return nil, ErrLoginIncorrect
	}

	slog.Debug("authenticate user did ok",
		slog.String("email", cred.Email),
		slog.String("user_id", user.ID),
	)
	return user, nil
}

// OAuthStrategy は外部IdPの認可コードを検証し、ローカルのユーザーに対応付ける。
type OAuthStrategy struct {
	provider   OAuthProvider
	users      repository.UserRepository
	identities repository.IdentityRepository
}

// NewOAuthStrategy はOAuthStrategyを生成する。
func NewOAuthStrategy(provider OAuthProvider, users repository.UserRepository, identities repository.IdentityRepository) *OAuthStrategy {
	return &OAuthStrategy{
		provider:   provider,
		users:      users,
		identities: identities,
	}
}

// Name はプロバイダー名を返す。
func (s *OAuthStrategy) Name() string { return s.provider.Name() }

// Authenticate は認可コードを交換してIdPのユーザー情報を取得し、ユーザーを特定する。
// 1. identityが登録済みならそのユーザー
// 2. IdPが検証済みのメールアドレスと一致し、パスワード未設定のユーザーがいればidentityを紐付ける
// 3. いなければユーザーとidentityを同時に作成する
// パスワード設定済みのユーザーとメールアドレスが一致した場合は紐付けず、メールアドレス無しで作成する。
func (s *OAuthStrategy) Authenticate(ctx context.Context, cred Credentials) (*model.User, error) {
	info, err := s.provider.Exchange(ctx, cred.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.identities.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		user, err := s.users.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("identity %s references missing user %s", identity.ID, identity.UserID)
		}
		slog.Info("existing user logged in",
			slog.String("user_id", user.ID),
			slog.String("provider", info.Provider),
		)
		return user, nil
	}

	now := time.Now()
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}

	email := info.Email
	if email != "" {
		existing, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by email: %w", err)
		}
		if existing != nil && (!info.EmailVerified || existing.HasPassword()) {
			slog.Warn("oauth email matches an account that cannot be linked",
				slog.String("user_id", existing.ID),
				slog.String("provider", info.Provider),
				slog.Bool("email_verified", info.EmailVerified),
			)
			email = ""
			existing = nil
		}
		if existing != nil {
			newIdentity.UserID = existing.ID
			if err := s.identities.Create(ctx, newIdentity); err != nil {
				return nil, fmt.Errorf("failed to link identity: %w", err)
			}
			slog.Info("identity linked to existing user",
				slog.String("user_id", existing.ID),
				slog.String("provider", info.Provider),
			)
			return existing, nil
		}
	}

	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      info.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	newIdentity.UserID = newUser.ID

	if err := s.users.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("provider", info.Provider),
	)
	return newUser, nil
}

// compile-time interface check
var (
	_ Strategy = (*LocalStrategy)(nil)
	_ Strategy = (*OAuthStrategy)(nil)
)
