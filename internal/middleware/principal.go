// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"

	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// UserDeserializer はセッションに保存されたIDからユーザーを復元する。
// ユーザーが存在しない場合は(nil, nil)を返す。
type UserDeserializer interface {
	DeserializeUser(ctx context.Context, id string) (*model.User, error)
}

// NewPrincipalMiddleware はセッションのユーザーIDからユーザーを復元し、
// リクエストコンテキストに注入するミドルウェアを返す。
// scsのLoadAndSaveの内側に配置する必要がある。
// 未認証のリクエストもそのまま通し、ハンドラー側でゲストとして扱う。
func NewPrincipalMiddleware(sm *scs.SessionManager, deserializer UserDeserializer, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			id := session.PrincipalID(ctx, sm)
			if id == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := deserializer.DeserializeUser(ctx, id)
			if err != nil {
				slog.Error("failed to deserialize user",
					slog.String("user_id", id),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			if user == nil {
				// 参照先ユーザーが削除済み。ゲストとして続行する。
				collector.RecordPrincipalMiss()
				session.DropPrincipal(ctx, sm)
				next.ServeHTTP(w, r)
				return
			}

			setLogUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user)))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 未認証の場合はnilを返す。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーのIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user := UserFromContext(ctx)
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
