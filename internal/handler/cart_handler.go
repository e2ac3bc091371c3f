package handler

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

// CartServiceInterface はカートハンドラーが必要とするサービスインターフェース。
type CartServiceInterface interface {
	CartReader
	// ResolveItem は明細を検証し、商品と単価を商品マスタから補完する。
	ResolveItem(ctx context.Context, item model.OrderItem) (model.OrderItem, error)
	// AddItem はサインイン済みユーザーのカートに明細を追加する。
	AddItem(ctx context.Context, userID string, item model.OrderItem) (*model.Order, error)
}

// CartHandler はカート操作のHTTPハンドラー。
type CartHandler struct {
	service CartServiceInterface
	sm      *scs.SessionManager
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface, sm *scs.SessionManager) *CartHandler {
	return &CartHandler{service: service, sm: sm}
}

// addItemRequest はカート追加リクエストのボディ。単価は商品マスタから取る。
type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// AddItem はカートに明細を追加する。
// ゲストはセッションのカートに、サインイン済みユーザーはprocessing状態の注文に追加する。
// レスポンスはwhoamiのcartと同じ形式。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}
	item := model.OrderItem{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	}

	u := middleware.UserFromContext(r.Context())
	if u == nil {
		line, err := h.service.ResolveItem(r.Context(), item)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		current := cart.QuantityOf(session.GuestCart(r.Context(), h.sm), line.ProductID)
		if err := cart.CheckQuantity(current, line.Quantity); err != nil {
			handleServiceError(w, err)
			return
		}
		items := session.AddGuestCartItem(r.Context(), h.sm, line)
		middleware.WriteJSON(w, http.StatusOK, map[string]any{"cart": toGuestCartResponse(items)})
		return
	}

	order, err := h.service.AddItem(r.Context(), u.ID, item)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"cart": toOrderResponse(order)})
}
