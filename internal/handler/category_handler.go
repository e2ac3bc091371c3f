package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
)

// CategoryLister はカテゴリ一覧を取得する。
type CategoryLister interface {
	List(ctx context.Context) ([]*model.Category, error)
}

// CategoryHandler はカテゴリのHTTPハンドラー。
type CategoryHandler struct {
	categories CategoryLister
}

// NewCategoryHandler はCategoryHandlerを生成する。
func NewCategoryHandler(categories CategoryLister) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// List は全カテゴリを名前順で返す。
// GET /api/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		resp = append(resp, categoryResponse{ID: c.ID, Name: c.Name})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"categories": resp})
}
