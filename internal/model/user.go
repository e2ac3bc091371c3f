// Package model はドメインモデルを定義する。
package model

import "time"

// User はストアの利用ユーザーを表す。
// ローカル認証のユーザーはPasswordHashを持ち、OAuthのみのユーザーは空文字列となる。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Description  string
	URL          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword はローカル認証用のパスワードが設定されているかを返す。
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}
