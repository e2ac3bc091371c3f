package auth

import "errors"

var (
	// ErrLoginIncorrect は資格情報が一致しない場合に返される。
	// ユーザーが存在しない場合とパスワード不一致を呼び出し元には区別しない。
	ErrLoginIncorrect = errors.New("login incorrect")

	// ErrUnknownStrategy は登録されていないストラテジー名が指定された場合に返される。
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrProviderNotConfigured はクライアント認証情報が未設定のプロバイダーを利用しようとした場合に返される。
	ErrProviderNotConfigured = errors.New("oauth provider is not configured")
)
