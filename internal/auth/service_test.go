package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/storefront/internal/model"
)

func newTestService(users *mockUserRepo, identities *mockIdentityRepo, providers ...OAuthProvider) *Service {
	return NewService(NewRegistry(providers...), users, identities)
}

func TestService_LoginLocal_ReturnsUserWhoseIDBecomesPrincipal(t *testing.T) {
	stored := newUserWithPassword(t, "user-42", "bob@example.com", "password123")
	users := &mockUserRepo{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) { return stored, nil },
	}
	svc := newTestService(users, &mockIdentityRepo{})

	user, err := svc.LoginLocal(context.Background(), "bob@example.com", "password123")
	if err != nil {
		t.Fatalf("LoginLocal returned error: %v", err)
	}
	if got := svc.SerializeUser(user); got != "user-42" {
		t.Errorf("SerializeUser = %q, want user-42", got)
	}
}

func TestService_Authenticate_UnknownStrategy(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockIdentityRepo{})

	_, err := svc.Authenticate(context.Background(), "twitter", Credentials{})
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("err = %v, want ErrUnknownStrategy", err)
	}
}

func TestService_LoginURL(t *testing.T) {
	configured := &mockOAuthProvider{
		name:       "google",
		configured: true,
		authCodeURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	unconfigured := &mockOAuthProvider{name: "facebook"}
	svc := newTestService(&mockUserRepo{}, &mockIdentityRepo{}, configured, unconfigured)

	url, err := svc.LoginURL("google", "test-state")
	if err != nil {
		t.Fatalf("LoginURL returned error: %v", err)
	}
	if !strings.HasSuffix(url, "state=test-state") {
		t.Errorf("LoginURL = %q", url)
	}

	if _, err := svc.LoginURL("facebook", "s"); !errors.Is(err, ErrProviderNotConfigured) {
		t.Errorf("err = %v, want ErrProviderNotConfigured", err)
	}
	if _, err := svc.LoginURL("local", "s"); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("err = %v, want ErrUnknownStrategy", err)
	}
}

func TestService_HandleCallback_DelegatesToProviderStrategy(t *testing.T) {
	provider := &mockOAuthProvider{
		name:       "github",
		configured: true,
		exchangeFn: func(_ context.Context, _ string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{ProviderUserID: "gh-1", Provider: "github"}, nil
		},
	}
	identities := &mockIdentityRepo{
		findByProviderFn: func(_ context.Context, _, _ string) (*model.Identity, error) {
			return &model.Identity{ID: "i-1", UserID: "user-7"}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) { return &model.User{ID: id}, nil },
	}
	svc := newTestService(users, identities, provider)

	user, err := svc.HandleCallback(context.Background(), "github", "code")
	if err != nil {
		t.Fatalf("HandleCallback returned error: %v", err)
	}
	if user.ID != "user-7" {
		t.Errorf("user.ID = %q, want user-7", user.ID)
	}
}

// localはOAuthコールバックとして扱わない
func TestService_HandleCallback_LocalIsNotAProvider(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockIdentityRepo{})

	_, err := svc.HandleCallback(context.Background(), "local", "code")
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("err = %v, want ErrUnknownStrategy", err)
	}
}

func TestService_SerializeDeserialize_RoundTrip(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			if id == "user-1" {
				return &model.User{ID: "user-1", Email: "a@example.com"}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(users, &mockIdentityRepo{})

	principal := svc.SerializeUser(&model.User{ID: "user-1", Email: "a@example.com", Name: "ignored"})
	user, err := svc.DeserializeUser(context.Background(), principal)
	if err != nil {
		t.Fatalf("DeserializeUser returned error: %v", err)
	}
	if user == nil || user.ID != "user-1" {
		t.Errorf("DeserializeUser = %+v, want ID user-1", user)
	}
}

// 削除済みユーザーのプリンシパルはエラーにせずnilを返す
func TestService_DeserializeUser_MissingUser_ReturnsNil(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, &mockIdentityRepo{})

	user, err := svc.DeserializeUser(context.Background(), "deleted-user")
	if err != nil {
		t.Fatalf("DeserializeUser returned error: %v", err)
	}
	if user != nil {
		t.Errorf("DeserializeUser = %+v, want nil", user)
	}
}

func TestService_DeserializeUser_LookupError_Propagates(t *testing.T) {
	dbErr := errors.New("db down")
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, _ string) (*model.User, error) { return nil, dbErr },
	}
	svc := newTestService(users, &mockIdentityRepo{})

	if _, err := svc.DeserializeUser(context.Background(), "user-1"); !errors.Is(err, dbErr) {
		t.Errorf("err = %v, want wrapped %v", err, dbErr)
	}
}
