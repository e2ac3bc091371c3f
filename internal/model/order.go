package model

import "time"

// OrderStatus は注文の状態を表す。
type OrderStatus string

const (
	// OrderStatusProcessing は購入手続き前のカートとして扱われる注文。
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusCompleted は購入済みの注文。
	OrderStatusCompleted OrderStatus = "completed"
)

// MaxItemQuantity は1明細あたりの数量の上限。
const MaxItemQuantity = 99

// Product はカート明細から参照される商品を表す。
type Product struct {
	ID         string
	Title      string
	Price      int64 // 最小通貨単位
	CategoryID string
}

// Order はユーザーの注文を表す。
// statusがprocessingの注文がサインイン済みユーザーのカートとなる。
type Order struct {
	ID         string
	BuyerID    string
	Status     OrderStatus
	OrderItems []OrderItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderItem は注文明細を表す。
// ゲストカートではOrderIDとIDは空のままセッションに保持される。
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	Price     int64
	Product   *Product
}
