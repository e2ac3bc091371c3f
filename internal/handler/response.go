package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// maxRequestBodySize はJSONリクエストボディの上限。
const maxRequestBodySize = 1 << 20

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// productResponse は明細に含める商品情報。
type productResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Price      int64  `json:"price"`
	CategoryID string `json:"category_id,omitempty"`
}

// orderItemResponse は注文明細のAPIレスポンス。
// ゲストカートの明細はIDと注文IDを持たない。
type orderItemResponse struct {
	ID        string           `json:"id,omitempty"`
	OrderID   string           `json:"order_id,omitempty"`
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     int64            `json:"price"`
	Product   *productResponse `json:"product,omitempty"`
}

// orderResponse はサインイン済みユーザーのカート（processing状態の注文）。
type orderResponse struct {
	ID         string              `json:"id"`
	BuyerID    string              `json:"buyer_id"`
	Status     string              `json:"status"`
	OrderItems []orderItemResponse `json:"order_items"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// guestCartResponse はゲストカートのAPIレスポンス。
type guestCartResponse struct {
	OrderItems []orderItemResponse `json:"order_items"`
}

// whoAmIResponse は /api/auth/whoami のレスポンス。
// ゲストの場合userは出力しない。サインイン済みでカートが無い場合cartはnullとなる。
type whoAmIResponse struct {
	User *userResponse `json:"user,omitempty"`
	Cart any           `json:"cart"`
}

// categoryResponse はカテゴリのAPIレスポンス。
type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func toUserResponse(u *model.User) *userResponse {
	return &userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Description: u.Description,
		URL:         u.URL,
		CreatedAt:   u.CreatedAt,
	}
}

func toOrderItemResponses(items []model.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, 0, len(items))
	for _, item := range items {
		r := orderItemResponse{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		}
		if item.Product != nil {
			r.Product = &productResponse{
				ID:         item.Product.ID,
				Title:      item.Product.Title,
				Price:      item.Product.Price,
				CategoryID: item.Product.CategoryID,
			}
		}
		resp = append(resp, r)
	}
	return resp
}

// toOrderResponse は注文をレスポンスに変換する。nilの場合はnilを返す。
func toOrderResponse(o *model.Order) *orderResponse {
	if o == nil {
		return nil
	}
	return &orderResponse{
		ID:         o.ID,
		BuyerID:    o.BuyerID,
		Status:     string(o.Status),
		OrderItems: toOrderItemResponses(o.OrderItems),
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func toGuestCartResponse(items []model.OrderItem) *guestCartResponse {
	return &guestCartResponse{OrderItems: toOrderItemResponses(items)}
}

// decodeJSONBody はリクエストボディをJSONとしてデコードする。
func decodeJSONBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeLoginIncorrect, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeUnknownStrategy:
		return http.StatusNotFound
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
