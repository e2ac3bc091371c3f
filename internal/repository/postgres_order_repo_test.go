package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/storefront/internal/model"
)

func TestPostgresOrderRepo_FindCart_NoOrder_ReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	users := NewPostgresUserRepo(db)
	orders := NewPostgresOrderRepo(db)
	ctx := context.Background()

	user := newTestUser("nocart@example.com")
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	cart, err := orders.FindCartByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindCartByUserID returned error: %v", err)
	}
	if cart != nil {
		t.Errorf("expected nil cart, got %+v", cart)
	}
}

func TestPostgresOrderRepo_CreateCartAndAddItems(t *testing.T) {
	db := setupTestDB(t)
	users := NewPostgresUserRepo(db)
	orders := NewPostgresOrderRepo(db)
	ctx := context.Background()

	user := newTestUser("buyer@example.com")
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	productID := insertTestProduct(t, db, "Mug", 1200)

	now := time.Now()
	order := &model.Order{ID: uuid.New().String(), BuyerID: user.ID, CreatedAt: now, UpdatedAt: now}
	if err := orders.CreateCart(ctx, order); err != nil {
		t.Fatalf("CreateCart returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		item := model.OrderItem{ProductID: productID, Quantity: 2, Price: 1200}
		if err := orders.AddItems(ctx, order.ID, []model.OrderItem{item}); err != nil {
			t.Fatalf("AddItems returned error: %v", err)
		}
	}

	cart, err := orders.FindCartByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindCartByUserID returned error: %v", err)
	}
	if cart == nil {
		t.Fatal("expected cart, got nil")
	}
	if cart.Status != model.OrderStatusProcessing {
		t.Errorf("Status = %q, want processing", cart.Status)
	}
	if len(cart.OrderItems) != 1 {
		t.Fatalf("len(OrderItems) = %d, want 1", len(cart.OrderItems))
	}
	if cart.OrderItems[0].Quantity != 4 {
		t.Errorf("Quantity = %d, want 4", cart.OrderItems[0].Quantity)
	}
	if cart.OrderItems[0].Product == nil || cart.OrderItems[0].Product.Title != "Mug" {
		t.Errorf("Product = %+v, want Mug", cart.OrderItems[0].Product)
	}
}

// 途中の明細が失敗した場合は先行する明細も追加されない
func TestPostgresOrderRepo_AddItems_RollsBackOnFailure(t *testing.T) {
	db := setupTestDB(t)
	users := NewPostgresUserRepo(db)
	orders := NewPostgresOrderRepo(db)
	ctx := context.Background()

	user := newTestUser("rollback@example.com")
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	productID := insertTestProduct(t, db, "Kettle", 3000)

	now := time.Now()
	order := &model.Order{ID: uuid.New().String(), BuyerID: user.ID, CreatedAt: now, UpdatedAt: now}
	if err := orders.CreateCart(ctx, order); err != nil {
		t.Fatalf("CreateCart returned error: %v", err)
	}

	items := []model.OrderItem{
		{ProductID: productID, Quantity: 1, Price: 3000},
		{ProductID: uuid.New().String(), Quantity: 1, Price: 100}, // 存在しない商品
	}
	for i := 0; i < 3; i++ {
		if err := orders.AddItems(ctx, order.ID, items); err == nil {
			t.Fatal("expected foreign key error")
		}
	}

	cart, err := orders.FindCartByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindCartByUserID returned error: %v", err)
	}
	if len(cart.OrderItems) != 0 {
		t.Errorf("OrderItems = %+v, want none", cart.OrderItems)
	}
}

// 加算後の数量は上限で頭打ちになる
func TestPostgresOrderRepo_AddItems_CapsQuantity(t *testing.T) {
	db := setupTestDB(t)
	users := NewPostgresUserRepo(db)
	orders := NewPostgresOrderRepo(db)
	ctx := context.Background()

	user := newTestUser("cap@example.com")
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	productID := insertTestProduct(t, db, "Spoon", 100)

	now := time.Now()
	order := &model.Order{ID: uuid.New().String(), BuyerID: user.ID, CreatedAt: now, UpdatedAt: now}
	if err := orders.CreateCart(ctx, order); err != nil {
		t.Fatalf("CreateCart returned error: %v", err)
	}

	for i := 0; i < 2; i++ {
		item := model.OrderItem{ProductID: productID, Quantity: model.MaxItemQuantity - 1, Price: 100}
		if err := orders.AddItems(ctx, order.ID, []model.OrderItem{item}); err != nil {
			t.Fatalf("AddItems returned error: %v", err)
		}
	}

	cart, err := orders.FindCartByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindCartByUserID returned error: %v", err)
	}
	if len(cart.OrderItems) != 1 || cart.OrderItems[0].Quantity != model.MaxItemQuantity {
		t.Errorf("OrderItems = %+v, want quantity %d", cart.OrderItems, model.MaxItemQuantity)
	}
}

func TestPostgresProductRepo_FindByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresProductRepo(db)
	ctx := context.Background()

	productID := insertTestProduct(t, db, "Teapot", 4500)

	p, err := repo.FindByID(ctx, productID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if p == nil || p.Title != "Teapot" || p.Price != 4500 {
		t.Errorf("product = %+v", p)
	}

	missing, err := repo.FindByID(ctx, uuid.New().String())
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown product, got %+v", missing)
	}
}

// 2回目のCreateCartは既存のprocessing注文を返す
func TestPostgresOrderRepo_CreateCart_ReusesExisting(t *testing.T) {
	db := setupTestDB(t)
	users := NewPostgresUserRepo(db)
	orders := NewPostgresOrderRepo(db)
	ctx := context.Background()

	user := newTestUser("twice@example.com")
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	now := time.Now()
	first := &model.Order{ID: uuid.New().String(), BuyerID: user.ID, CreatedAt: now, UpdatedAt: now}
	if err := orders.CreateCart(ctx, first); err != nil {
		t.Fatalf("CreateCart returned error: %v", err)
	}
	second := &model.Order{ID: uuid.New().String(), BuyerID: user.ID, CreatedAt: now, UpdatedAt: now}
	if err := orders.CreateCart(ctx, second); err != nil {
		t.Fatalf("CreateCart returned error: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("second.ID = %q, want existing %q", second.ID, first.ID)
	}
}

// completed状態の注文はカートとして扱わない
func TestPostgresOrderRepo_FindCart_IgnoresCompletedOrders(t *testing.T) {
	db := setupTestDB(t)
	users := NewPostgresUserRepo(db)
	orders := NewPostgresOrderRepo(db)
	ctx := context.Background()

	user := newTestUser("done@example.com")
	if err := users.Create(ctx, user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO orders (buyer_id, status) VALUES ($1, 'completed')`, user.ID); err != nil {
		t.Fatalf("注文挿入に失敗: %v", err)
	}

	cart, err := orders.FindCartByUserID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindCartByUserID returned error: %v", err)
	}
	if cart != nil {
		t.Errorf("expected nil cart, got %+v", cart)
	}
}

func TestPostgresCategoryRepo_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresCategoryRepo(db)
	ctx := context.Background()

	empty, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("List on empty table = %v, want empty non-nil slice", empty)
	}

	for _, name := range []string{"Kitchen", "Books"} {
		if _, err := db.Exec(`INSERT INTO categories (name) VALUES ($1)`, name); err != nil {
			t.Fatalf("カテゴリ挿入に失敗: %v", err)
		}
	}

	categories, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("len = %d, want 2", len(categories))
	}
	if categories[0].Name != "Books" || categories[1].Name != "Kitchen" {
		t.Errorf("categories not sorted by name: %q, %q", categories[0].Name, categories[1].Name)
	}
}
