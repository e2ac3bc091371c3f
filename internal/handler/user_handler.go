package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Register はローカル認証用のユーザーを登録する。
	// メールアドレス重複時はEMAIL_TAKENのAPIErrorを返す。
	Register(ctx context.Context, in user.RegisterInput) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	login   *loginCompleter
}

// NewUserHandler はUserHandlerを生成する。
// 登録に成功したユーザーはそのままログイン状態になる。
func NewUserHandler(service UserServiceInterface, serializer AuthServiceInterface, merger cart.Merger, sm *scs.SessionManager) *UserHandler {
	return &UserHandler{
		service: service,
		login:   &loginCompleter{service: serializer, merger: merger, sm: sm},
	}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Register はユーザーを登録してログインさせる。
// POST /api/users
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
		return
	}

	u, err := h.service.Register(r.Context(), user.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Description: req.Description,
		URL:         req.URL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.login.complete(r.Context(), u); err != nil {
		slog.Error("failed to store session principal",
			slog.String("user_id", u.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, map[string]any{"user": toUserResponse(u)})
}
