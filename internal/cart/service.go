// Package cart はサインイン済みユーザーのカート（processing状態の注文）を扱う。
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/repository"
)

// Merger はゲストカートをユーザーのカートへ移す。
type Merger interface {
	MergeGuestCart(ctx context.Context, userID string, items []model.OrderItem) error
}

// Service はカートに関するビジネスロジックを提供する。
type Service struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
}

// NewService はServiceを生成する。
func NewService(orders repository.OrderRepository, products repository.ProductRepository) *Service {
	return &Service{orders: orders, products: products}
}

// Cart はユーザーのprocessing状態の注文を返す。無い場合はnilを返す。
func (s *Service) Cart(ctx context.Context, userID string) (*model.Order, error) {
	order, err := s.orders.FindCartByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return order, nil
}

// ResolveItem は明細を検証し、商品と単価を商品マスタから補完した明細を返す。
// 存在しない商品は検証エラーとなる。
func (s *Service) ResolveItem(ctx context.Context, item model.OrderItem) (model.OrderItem, error) {
	if err := ValidateItem(item); err != nil {
		return model.OrderItem{}, err
	}

	product, err := s.products.FindByID(ctx, item.ProductID)
	if err != nil {
		return model.OrderItem{}, fmt.Errorf("failed to find product: %w", err)
	}
	if product == nil {
		return model.OrderItem{}, model.NewValidationError("product_id に該当する商品がありません")
	}

	return model.OrderItem{
		ProductID: product.ID,
		Quantity:  item.Quantity,
		Price:     product.Price,
		Product:   product,
	}, nil
}

// AddItem はユーザーのカートに明細を追加する。カートが無い場合は作成する。
// 加算後の数量が上限を超える場合は検証エラーとなる。
func (s *Service) AddItem(ctx context.Context, userID string, item model.OrderItem) (*model.Order, error) {
	line, err := s.ResolveItem(ctx, item)
	if err != nil {
		return nil, err
	}

	order, err := s.ensureCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := CheckQuantity(QuantityOf(order.OrderItems, line.ProductID), line.Quantity); err != nil {
		return nil, err
	}

	if err := s.orders.AddItems(ctx, order.ID, []model.OrderItem{line}); err != nil {
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	return s.Cart(ctx, userID)
}

// MergeGuestCart はゲストカートの明細をユーザーのカートへまとめて加算する。
// 検証に通らない明細は読み飛ばす。加算は1トランザクションで行い、失敗時は何も加算しない。
// 空のゲストカートの場合は何もしない。
func (s *Service) MergeGuestCart(ctx context.Context, userID string, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	lines := make([]model.OrderItem, 0, len(items))
	for _, item := range items {
		line, err := s.ResolveItem(ctx, item)
		if err != nil {
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				return err
			}
			slog.Warn("skipping invalid guest cart item",
				slog.String("user_id", userID),
				slog.String("product_id", item.ProductID),
				slog.String("reason", apiErr.Message),
			)
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return nil
	}

	order, err := s.ensureCart(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.orders.AddItems(ctx, order.ID, lines); err != nil {
		return fmt.Errorf("failed to merge guest cart: %w", err)
	}

	slog.Info("guest cart merged",
		slog.String("user_id", userID),
		slog.Int("items", len(lines)),
	)
	return nil
}

func (s *Service) ensureCart(ctx context.Context, userID string) (*model.Order, error) {
	order, err := s.orders.FindCartByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if order != nil {
		return order, nil
	}

	now := time.Now()
	order = &model.Order{
		ID:        uuid.New().String(),
		BuyerID:   userID,
		Status:    model.OrderStatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orders.CreateCart(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return order, nil
}

// ValidateItem は明細の商品IDと数量を検証する。
func ValidateItem(item model.OrderItem) error {
	if _, err := uuid.Parse(item.ProductID); err != nil {
		return model.NewValidationError("product_id が不正です")
	}
	if item.Quantity < 1 || item.Quantity > model.MaxItemQuantity {
		return model.NewValidationError(fmt.Sprintf("quantity は1以上%d以下を指定してください", model.MaxItemQuantity))
	}
	return nil
}

// CheckQuantity は既存の数量にaddを加えた結果が上限以内かを検証する。
func CheckQuantity(current, add int) error {
	if add > model.MaxItemQuantity-current {
		return model.NewValidationError(fmt.Sprintf("1商品あたりの数量は%d以下にしてください", model.MaxItemQuantity))
	}
	return nil
}

// QuantityOf は明細一覧のうち指定商品の数量を返す。
func QuantityOf(items []model.OrderItem, productID string) int {
	for _, item := range items {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

// compile-time interface check
var _ Merger = (*Service)(nil)
