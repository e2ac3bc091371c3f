package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
	"github.com/hitoshi/storefront/internal/user"
)

// --- モック定義 ---

type mockAuthService struct {
	loginLocalFn     func(ctx context.Context, email, password string) (*model.User, error)
	loginURLFn       func(provider, state string) (string, error)
	handleCallbackFn func(ctx context.Context, provider, code string) (*model.User, error)
}

func (m *mockAuthService) LoginLocal(ctx context.Context, email, password string) (*model.User, error) {
	if m.loginLocalFn != nil {
		return m.loginLocalFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) LoginURL(provider, state string) (string, error) {
	if m.loginURLFn != nil {
		return m.loginURLFn(provider, state)
	}
	return "", nil
}

func (m *mockAuthService) HandleCallback(ctx context.Context, provider, code string) (*model.User, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, provider, code)
	}
	return nil, nil
}

func (m *mockAuthService) SerializeUser(u *model.User) string {
	return u.ID
}

type mockCartService struct {
	cartFn        func(ctx context.Context, userID string) (*model.Order, error)
	resolveItemFn func(ctx context.Context, item model.OrderItem) (model.OrderItem, error)
	addItemFn     func(ctx context.Context, userID string, item model.OrderItem) (*model.Order, error)
}

func (m *mockCartService) Cart(ctx context.Context, userID string) (*model.Order, error) {
	if m.cartFn != nil {
		return m.cartFn(ctx, userID)
	}
	return nil, nil
}

// ResolveItem は未設定の場合、検証だけ行い単価500の商品として補完する。
func (m *mockCartService) ResolveItem(ctx context.Context, item model.OrderItem) (model.OrderItem, error) {
	if m.resolveItemFn != nil {
		return m.resolveItemFn(ctx, item)
	}
	if err := cart.ValidateItem(item); err != nil {
		return model.OrderItem{}, err
	}
	item.Price = 500
	item.Product = &model.Product{ID: item.ProductID, Title: "Test Product", Price: 500}
	return item, nil
}

func (m *mockCartService) AddItem(ctx context.Context, userID string, item model.OrderItem) (*model.Order, error) {
	if m.addItemFn != nil {
		return m.addItemFn(ctx, userID, item)
	}
	return nil, nil
}

type mockMerger struct {
	mergeFn func(ctx context.Context, userID string, items []model.OrderItem) error
}

func (m *mockMerger) MergeGuestCart(ctx context.Context, userID string, items []model.OrderItem) error {
	if m.mergeFn != nil {
		return m.mergeFn(ctx, userID, items)
	}
	return nil
}

type mockUserService struct {
	registerFn func(ctx context.Context, in user.RegisterInput) (*model.User, error)
}

func (m *mockUserService) Register(ctx context.Context, in user.RegisterInput) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

type mockCategoryLister struct {
	listFn func(ctx context.Context) ([]*model.Category, error)
}

func (m *mockCategoryLister) List(ctx context.Context) ([]*model.Category, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Category{}, nil
}

// mapDeserializer はメモリ上のユーザーからプリンシパルを復元する。
type mapDeserializer struct {
	users map[string]*model.User
}

func (m *mapDeserializer) DeserializeUser(ctx context.Context, id string) (*model.User, error) {
	return m.users[id], nil
}

// --- ヘルパー ---

const (
	testProductA = "11111111-1111-1111-1111-111111111111"
	testProductB = "22222222-2222-2222-2222-222222222222"
)

// newTestSessionManager はmemstoreを使うセッションマネージャーを生成する。
func newTestSessionManager() *scs.SessionManager {
	return session.NewManager(nil, session.Config{MaxAge: time.Hour})
}

// withSession は空のセッションを読み込んだコンテキストをリクエストに設定する。
func withSession(t *testing.T, sm *scs.SessionManager, req *http.Request) *http.Request {
	t.Helper()
	ctx, err := sm.Load(req.Context(), "")
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	return req.WithContext(ctx)
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func testUser() *model.User {
	return &model.User{
		ID:    "user-1",
		Email: "alice@example.com",
		Name:  "Alice",
	}
}
