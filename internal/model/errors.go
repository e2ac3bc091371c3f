package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, cart, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeLoginIncorrect  = "LOGIN_INCORRECT"
	ErrCodeUnknownStrategy = "UNKNOWN_STRATEGY"
	ErrCodeEmailTaken      = "EMAIL_TAKEN"
	ErrCodeValidation      = "VALIDATION_FAILED"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeCSRF            = "CSRF_TOKEN_INVALID"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// LoginIncorrectMessage はローカル認証失敗時の汎用メッセージ。
// ユーザーの存在有無を区別しない。
const LoginIncorrectMessage = "Login incorrect"

// NewLoginIncorrectError はローカル認証失敗エラーを生成する。
func NewLoginIncorrectError() *APIError {
	return &APIError{
		Code:     ErrCodeLoginIncorrect,
		Message:  LoginIncorrectMessage,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewUnknownStrategyError は未登録の認証ストラテジーが指定された場合のエラーを生成する。
func NewUnknownStrategyError(strategy string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownStrategy,
		Message:  fmt.Sprintf("未対応のログイン方法です: %s", strategy),
		Category: "auth",
		Action:   "facebook、google、github のいずれかを指定してください。",
	}
}

// NewEmailTakenError はメールアドレスが既に登録済みの場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailTaken,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログインするか、別のメールアドレスを使用してください。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewUnauthorizedError は認証が必要な操作を未認証で行った場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}
