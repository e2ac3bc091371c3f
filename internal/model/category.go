package model

// Category は商品カテゴリを表す。
type Category struct {
	ID   string
	Name string
}
