// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/storefront/internal/model"
)

// ErrDuplicateEmail はメールアドレスが既に登録済みの場合に返される。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	// メールアドレスは保存された形式のまま比較し、正規化しない。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	// 空のメールアドレスは未設定として扱い、重複判定の対象外とする。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create は既存ユーザーにidentityを紐付ける。
	Create(ctx context.Context, identity *model.Identity) error
}

// OrderRepository は注文（カート）データの永続化インターフェース。
type OrderRepository interface {
	// FindCartByUserID はユーザーのprocessing状態の注文を明細と商品付きで取得する。
	// 見つからない場合はnilを返す。
	FindCartByUserID(ctx context.Context, userID string) (*model.Order, error)

	// CreateCart はユーザーのprocessing状態の注文を作成する。
	CreateCart(ctx context.Context, order *model.Order) error

	// AddItems は注文に明細を同一トランザクションで追加する。
	// 同一商品の明細が既にある場合は数量を加算し、model.MaxItemQuantityで頭打ちにする。
	// いずれかの明細で失敗した場合は1件も追加しない。
	AddItems(ctx context.Context, orderID string, items []model.OrderItem) error
}

// ProductRepository は商品データの参照インターフェース。
type ProductRepository interface {
	// FindByID は指定IDの商品を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Product, error)
}

// CategoryRepository は商品カテゴリの永続化インターフェース。
type CategoryRepository interface {
	// List は全カテゴリを名前順で返す。
	List(ctx context.Context) ([]*model.Category, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
