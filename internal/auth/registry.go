package auth

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/hitoshi/storefront/internal/config"
)

// Registry はプロバイダー名からOAuthProviderを引くための読み取り専用の登録簿。
// 起動時に1回だけ構築し、以降は変更しない。
type Registry struct {
	providers map[string]OAuthProvider
}

// NewRegistry は指定されたプロバイダーでRegistryを構築する。
// 同名のプロバイダーが重複している場合は後勝ちとなる。
func NewRegistry(providers ...OAuthProvider) *Registry {
	m := make(map[string]OAuthProvider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// NewDefaultRegistry はfacebook, google, githubの3プロバイダーを登録したRegistryを返す。
// 認証情報が未設定でもエラーにせず、利用時にErrProviderNotConfiguredとなる。
// httpClientはトークン交換とプロフィール取得に使用する。
func NewDefaultRegistry(cfg *config.Config, httpClient *http.Client) *Registry {
	providerConfig := func(name string, cred config.OAuthCredentials) ProviderConfig {
		return ProviderConfig{
			ClientID:     cred.ClientID,
			ClientSecret: cred.ClientSecret,
			CallbackURL:  CallbackURL(cfg.BaseURL, name),
			HTTPClient:   httpClient,
		}
	}

	return NewRegistry(
		NewFacebookProvider(providerConfig(ProviderFacebook, cfg.Facebook)),
		NewGoogleProvider(providerConfig(ProviderGoogle, cfg.Google)),
		NewGitHubProvider(providerConfig(ProviderGitHub, cfg.GitHub)),
	)
}

// Lookup は名前に対応するプロバイダーを返す。未登録の場合はErrUnknownStrategyを返す。
func (r *Registry) Lookup(name string) (OAuthProvider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownStrategy)
	}
	return p, nil
}

// Names は登録済みプロバイダー名を昇順で返す。
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
