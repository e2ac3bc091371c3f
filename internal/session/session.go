// Package session はscsによるサーバーサイドセッションと、その中に保持する
// プリンシパル（ユーザーID）とゲストカートへのアクセスを提供する。
package session

import (
	"context"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"

	"github.com/hitoshi/storefront/internal/model"
)

// CookieName はセッションCookieの名前。
const CookieName = "sid"

// セッション内のキー
const (
	keyUserID = "user_id"
	keyCart   = "cart"
)

func init() {
	// scsのgobコーデックでゲストカートを保存するため
	gob.Register([]model.OrderItem{})
}

// Config はセッションマネージャーの設定。
type Config struct {
	MaxAge       time.Duration
	CookieSecure bool
	CookieDomain string
	// ErrorFunc はセッションの読み込み・保存に失敗した場合に呼ばれる。nilの場合はscsの既定動作。
	ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// NewManager はセッションマネージャーを生成する。
// storeがnilの場合はscsの既定（memstore）を使用する。
func NewManager(store scs.Store, cfg Config) *scs.SessionManager {
	sm := scs.New()
	if store != nil {
		sm.Store = store
	}
	sm.Lifetime = cfg.MaxAge
	sm.Cookie.Name = CookieName
	sm.Cookie.Domain = cfg.CookieDomain
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.Persist = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.CookieSecure
	if cfg.ErrorFunc != nil {
		sm.ErrorFunc = cfg.ErrorFunc
	}
	return sm
}

// PutPrincipal は認証済みユーザーのIDをセッションに保存する。
// セッション固定攻撃を防ぐため、保存前にトークンを再発行する。
func PutPrincipal(ctx context.Context, sm *scs.SessionManager, userID string) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, keyUserID, userID)
	return nil
}

// PrincipalID はセッションに保存されたユーザーIDを返す。未認証の場合は空文字列。
func PrincipalID(ctx context.Context, sm *scs.SessionManager) string {
	return sm.GetString(ctx, keyUserID)
}

// ClearPrincipal はセッションから認証状態を取り除く。
// ゲストカートは残し、トークンを再発行する。
func ClearPrincipal(ctx context.Context, sm *scs.SessionManager) error {
	sm.Remove(ctx, keyUserID)
	return sm.RenewToken(ctx)
}

// DropPrincipal はトークンを再発行せずにユーザーIDだけを取り除く。
// 参照先ユーザーが削除済みの場合に使用する。
func DropPrincipal(ctx context.Context, sm *scs.SessionManager) {
	sm.Remove(ctx, keyUserID)
}

// GuestCart はセッションに保存されたゲストカートの明細を返す。
// 未設定の場合も空スライスを返し、nilは返さない。
func GuestCart(ctx context.Context, sm *scs.SessionManager) []model.OrderItem {
	items, ok := sm.Get(ctx, keyCart).([]model.OrderItem)
	if !ok || items == nil {
		return []model.OrderItem{}
	}
	return items
}

// PutGuestCart はゲストカートの明細をセッションに保存する。
func PutGuestCart(ctx context.Context, sm *scs.SessionManager, items []model.OrderItem) {
	sm.Put(ctx, keyCart, items)
}

// AddGuestCartItem はゲストカートに明細を追加する。
// 同じ商品が既にある場合は数量を加算し、単価を更新する。
// 加算後の数量はmodel.MaxItemQuantityで頭打ちにする。
func AddGuestCartItem(ctx context.Context, sm *scs.SessionManager, item model.OrderItem) []model.OrderItem {
	items := GuestCart(ctx, sm)
	item.Quantity = min(item.Quantity, model.MaxItemQuantity)
	merged := false
	for i := range items {
		if items[i].ProductID == item.ProductID {
			if item.Quantity > model.MaxItemQuantity-items[i].Quantity {
				items[i].Quantity = model.MaxItemQuantity
			} else {
				items[i].Quantity += item.Quantity
			}
			items[i].Price = item.Price
			items[i].Product = item.Product
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, item)
	}
	PutGuestCart(ctx, sm, items)
	return items
}

// ClearGuestCart はゲストカートをセッションから削除する。
func ClearGuestCart(ctx context.Context, sm *scs.SessionManager) {
	sm.Remove(ctx, keyCart)
}
