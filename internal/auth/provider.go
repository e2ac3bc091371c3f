package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// プロバイダー名
const (
	ProviderFacebook = "facebook"
	ProviderGoogle   = "google"
	ProviderGitHub   = "github"
)

const (
	defaultFacebookProfileURL = "https://graph.facebook.com/me?fields=id,name,email"
	defaultGoogleProfileURL   = "https://www.googleapis.com/oauth2/v3/userinfo"
	defaultGitHubProfileURL   = "https://api.github.com/user"
	defaultGitHubEmailsURL    = "https://api.github.com/user/emails"
)

// プロフィールレスポンスの読み込み上限
const maxProfileResponseSize = 1 << 20

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
// EmailVerifiedはIdPがメールアドレスの所有を確認済みの場合のみtrueとなる。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名（facebook, google, github）を返す。
	Name() string
	// AuthCodeURL はIdPの認可画面のURLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードをトークンに交換し、ユーザー情報を取得する。
	Exchange(ctx context.Context, code string) (*OAuthUserInfo, error)
	// Configured はクライアント認証情報が設定されているかを返す。
	Configured() bool
}

// ProviderConfig はOAuthプロバイダーの設定。
// ClientIDとClientSecretが空でも生成でき、利用時にErrProviderNotConfiguredとなる。
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string

	// HTTPClient はトークン交換とプロフィール取得に使うクライアント。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client

	// テスト用にオーバーライド可能なURL
	AuthURL    string
	TokenURL   string
	ProfileURL string
	EmailsURL  string
}

// CallbackURL はプロバイダーのコールバックURLを生成する。
// 形式: <baseURL>/api/auth/login/<provider>
func CallbackURL(baseURL, provider string) string {
	return baseURL + "/api/auth/login/" + provider
}

// profileFetcher はアクセストークン付きクライアントでプロフィールを取得する。
type profileFetcher func(ctx context.Context, client *http.Client, cfg ProviderConfig) (*OAuthUserInfo, error)

// oauth2Provider はgolang.org/x/oauth2による認可コードフローの共通実装。
// プロフィールの取得と解釈のみプロバイダーごとに異なる。
type oauth2Provider struct {
	name         string
	oauthConfig  *oauth2.Config
	config       ProviderConfig
	fetchProfile profileFetcher
}

func newOAuth2Provider(name string, endpoint oauth2.Endpoint, scopes []string, config ProviderConfig, fetch profileFetcher) *oauth2Provider {
	if config.AuthURL != "" {
		endpoint.AuthURL = config.AuthURL
	}
	if config.TokenURL != "" {
		endpoint.TokenURL = config.TokenURL
	}
	return &oauth2Provider{
		name: name,
		oauthConfig: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.CallbackURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		config:       config,
		fetchProfile: fetch,
	}
}

// NewFacebookProvider はFacebookのOAuthProviderを生成する。
func NewFacebookProvider(config ProviderConfig) *oauth2Provider {
	if config.ProfileURL == "" {
		config.ProfileURL = defaultFacebookProfileURL
	}
	return newOAuth2Provider(ProviderFacebook, facebook.Endpoint, []string{"email"}, config, fetchFacebookProfile)
}

// NewGoogleProvider はGoogleのOAuthProviderを生成する。
func NewGoogleProvider(config ProviderConfig) *oauth2Provider {
	if config.ProfileURL == "" {
		config.ProfileURL = defaultGoogleProfileURL
	}
	return newOAuth2Provider(ProviderGoogle, google.Endpoint, []string{"email", "profile"}, config, fetchGoogleProfile)
}

// NewGitHubProvider はGitHubのOAuthProviderを生成する。
// GitHubにはemailスコープが無いため、同等のuser:emailを要求する。
func NewGitHubProvider(config ProviderConfig) *oauth2Provider {
	if config.ProfileURL == "" {
		config.ProfileURL = defaultGitHubProfileURL
	}
	if config.EmailsURL == "" {
		config.EmailsURL = defaultGitHubEmailsURL
	}
	return newOAuth2Provider(ProviderGitHub, github.Endpoint, []string{"user:email"}, config, fetchGitHubProfile)
}

// Name はプロバイダー名を返す。
func (p *oauth2Provider) Name() string { return p.name }

// Configured はクライアントIDとシークレットが両方設定されているかを返す。
func (p *oauth2Provider) Configured() bool {
	return p.config.ClientID != "" && p.config.ClientSecret != ""
}

// AuthCodeURL はIdPの認可画面のURLを生成する。
func (p *oauth2Provider) AuthCodeURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state)
}

// Exchange は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (p *oauth2Provider) Exchange(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if !p.Configured() {
		return nil, fmt.Errorf("%s: %w", p.name, ErrProviderNotConfigured)
	}
	if code == "" {
		return nil, fmt.Errorf("%s: empty authorization code", p.name)
	}

	if p.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.config.HTTPClient)
	}

	// 1. 認可コードをアクセストークンに交換
	token, err := p.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// 2. アクセストークンでユーザー情報を取得
	info, err := p.fetchProfile(ctx, p.oauthConfig.Client(ctx, token), p.config)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if info.ProviderUserID == "" {
		return nil, fmt.Errorf("%s: empty user id in profile response", p.name)
	}
	info.Provider = p.name

	return info, nil
}

type facebookProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func fetchFacebookProfile(ctx context.Context, client *http.Client, cfg ProviderConfig) (*OAuthUserInfo, error) {
	var p facebookProfile
	if err := getJSON(ctx, client, cfg.ProfileURL, &p); err != nil {
		return nil, err
	}
	// Graph APIは検証状態を返さないため未検証として扱う
	return &OAuthUserInfo{ProviderUserID: p.ID, Email: p.Email, Name: p.Name}, nil
}

type googleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func fetchGoogleProfile(ctx context.Context, client *http.Client, cfg ProviderConfig) (*OAuthUserInfo, error) {
	var p googleProfile
	if err := getJSON(ctx, client, cfg.ProfileURL, &p); err != nil {
		return nil, err
	}
	info := &OAuthUserInfo{ProviderUserID: p.Sub, Name: p.Name}
	// 未検証のメールアドレスは既存ユーザーとの紐付けに使わない
	if p.EmailVerified {
		info.Email = p.Email
		info.EmailVerified = true
	}
	return info, nil
}

type githubProfile struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// fetchGitHubProfile は/userを取得し、公開メールアドレスが無い場合は
// /user/emailsから検証済みのプライマリアドレスを補完する。
func fetchGitHubProfile(ctx context.Context, client *http.Client, cfg ProviderConfig) (*OAuthUserInfo, error) {
	var p githubProfile
	if err := getJSON(ctx, client, cfg.ProfileURL, &p); err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return &OAuthUserInfo{}, nil
	}

	// 公開メールアドレスはGitHub側で検証済みのものしか設定できない
	info := &OAuthUserInfo{
		ProviderUserID: strconv.FormatInt(p.ID, 10),
		Email:          p.Email,
		EmailVerified:  p.Email != "",
		Name:           p.Name,
	}
	if info.Name == "" {
		info.Name = p.Login
	}

	if info.Email == "" {
		var emails []githubEmail
		if err := getJSON(ctx, client, cfg.EmailsURL, &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				info.Email = e.Email
				info.EmailVerified = true
				break
			}
		}
	}

	return info, nil
}

// getJSON はGETリクエストを送信し、200応答のJSONボディをvにデコードする。
func getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request to %s failed with status %d: %s", url, resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ OAuthProvider = (*oauth2Provider)(nil)
