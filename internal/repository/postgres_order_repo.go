package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// FindCartByUserID はユーザーのprocessing状態の注文を明細と商品付きで取得する。
// 見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindCartByUserID(ctx context.Context, userID string) (*model.Order, error) {
	order := &model.Order{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, buyer_id, status, created_at, updated_at
		 FROM orders
		 WHERE buyer_id = $1 AND status = $2`,
		userID, model.OrderStatusProcessing,
	).Scan(&order.ID, &order.BuyerID, &order.Status, &order.CreatedAt, &order.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	items, err := r.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.OrderItems = items

	return order, nil
}

func (r *PostgresOrderRepo) listItems(ctx context.Context, orderID string) ([]model.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price,
		        p.id, p.title, p.price, COALESCE(p.category_id::text, '')
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = $1
		 ORDER BY p.title, oi.id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := []model.OrderItem{}
	for rows.Next() {
		var item model.OrderItem
		product := &model.Product{}
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price,
			&product.ID, &product.Title, &product.Price, &product.CategoryID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.Product = product
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}

	return items, nil
}

// CreateCart はユーザーのprocessing状態の注文を作成する。
// 既にprocessing状態の注文がある場合は作成せず、既存注文のIDをorder.IDに設定する。
func (r *PostgresOrderRepo) CreateCart(ctx context.Context, order *model.Order) error {
	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO orders (id, buyer_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (buyer_id) WHERE status = 'processing' DO NOTHING
		 RETURNING id`,
		order.ID, order.BuyerID, model.OrderStatusProcessing, order.CreatedAt, order.UpdatedAt,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		err = r.db.QueryRowContext(ctx,
			`SELECT id FROM orders WHERE buyer_id = $1 AND status = $2`,
			order.BuyerID, model.OrderStatusProcessing,
		).Scan(&id)
	}
	if err != nil {
		return fmt.Errorf("failed to create cart: %w", err)
	}

	order.ID = id
	order.Status = model.OrderStatusProcessing
	return nil
}

// AddItems は注文に明細を同一トランザクションで追加する。
// 同一商品の明細が既にある場合は数量を加算し、単価を更新する。
// 加算後の数量はmodel.MaxItemQuantityを超えない。途中で失敗した場合は全てロールバックする。
func (r *PostgresOrderRepo) AddItems(ctx context.Context, orderID string, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if err := upsertOrderItem(ctx, tx, orderID, item); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET updated_at = now() WHERE id = $1`,
		orderID,
	); err != nil {
		return fmt.Errorf("failed to touch order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// upsertOrderItem は明細を1件追加または加算する。
func upsertOrderItem(ctx context.Context, exec execer, orderID string, item model.OrderItem) error {
	id := item.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := exec.ExecContext(ctx,
		`INSERT INTO order_items (id, order_id, product_id, quantity, price)
		 VALUES ($1, $2, $3, LEAST($4::integer, $6::integer), $5)
		 ON CONFLICT (order_id, product_id)
		 DO UPDATE SET quantity = LEAST(order_items.quantity + EXCLUDED.quantity, $6::integer), price = EXCLUDED.price`,
		id, orderID, item.ProductID, item.Quantity, item.Price, model.MaxItemQuantity,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order item %s: %w", item.ProductID, err)
	}
	return nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
