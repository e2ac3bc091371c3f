// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/storefront/internal/auth"
	"github.com/hitoshi/storefront/internal/cart"
	"github.com/hitoshi/storefront/internal/metrics"
	"github.com/hitoshi/storefront/internal/middleware"
	"github.com/hitoshi/storefront/internal/model"
	"github.com/hitoshi/storefront/internal/session"
)

const oauthStateCookie = "oauth_state"

// リダイレクト先
const (
	loginSuccessRedirect = "/"
	loginFailureRedirect = "/login"
	logoutRedirect       = "/api/auth/whoami"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// LoginLocal はメールアドレスとパスワードでユーザーを認証する。
	// 資格情報が一致しない場合はauth.ErrLoginIncorrectを返す。
	LoginLocal(ctx context.Context, email, password string) (*model.User, error)
	// LoginURL はプロバイダーの認可画面URLを返す。
	LoginURL(provider, state string) (string, error)
	// HandleCallback は認可コードからユーザーを特定する。
	HandleCallback(ctx context.Context, provider, code string) (*model.User, error)
	// SerializeUser はセッションに保存するプリンシパルを返す。
	SerializeUser(user *model.User) string
}

// CartReader はサインイン済みユーザーのカートを取得する。
type CartReader interface {
	// Cart はprocessing状態の注文を返す。無い場合はnilを返す。
	Cart(ctx context.Context, userID string) (*model.Order, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure bool
}

// AuthHandler はログイン・ログアウト・whoamiのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	carts   CartReader
	login   *loginCompleter
	sm      *scs.SessionManager
	metrics metrics.MetricsCollector
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
// mergerがnilの場合、ログイン時にゲストカートを移行しない。
func NewAuthHandler(
	service AuthServiceInterface,
	carts CartReader,
	merger cart.Merger,
	sm *scs.SessionManager,
	collector metrics.MetricsCollector,
	config AuthHandlerConfig,
) *AuthHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AuthHandler{
		service: service,
		carts:   carts,
		login:   &loginCompleter{service: service, merger: merger, sm: sm},
		sm:      sm,
		metrics: collector,
		config:  config,
	}
}

// WhoAmI は現在のユーザーとカートを返す。
// GET /api/auth/whoami
func (h *AuthHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	if user == nil {
		h.metrics.RecordWhoAmI(metrics.WhoAmIModeGuest)
		middleware.WriteJSON(w, http.StatusOK, whoAmIResponse{
			Cart: toGuestCartResponse(session.GuestCart(r.Context(), h.sm)),
		})
		return
	}

	order, err := h.carts.Cart(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to get cart",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	h.metrics.RecordWhoAmI(metrics.WhoAmIModeUser)
	middleware.WriteJSON(w, http.StatusOK, whoAmIResponse{
		User: toUserResponse(user),
		Cart: toOrderResponse(order),
	})
}

// localLoginRequest はJSON形式のローカルログインリクエスト。
type localLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginLocal はメールアドレスとパスワードでログインする。
// フォーム送信の場合は成功時 / へ、失敗時 /login へリダイレクトする。
// JSON送信の場合は成功時200 {user}、失敗時401を返す。
// POST /api/auth/login/local
func (h *AuthHandler) LoginLocal(w http.ResponseWriter, r *http.Request) {
	wantsJSON := isJSONRequest(r)

	var email, password string
	if wantsJSON {
		var req localLoginRequest
		if err := decodeJSONBody(r, &req); err != nil {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディが不正です"))
			return
		}
		email, password = req.Email, req.Password
	} else {
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, loginFailureRedirect, http.StatusFound)
			return
		}
		email, password = r.PostForm.Get("email"), r.PostForm.Get("password")
	}

	user, err := h.service.LoginLocal(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrLoginIncorrect) {
			h.metrics.RecordLogin(auth.StrategyLocal, metrics.LoginResultFailure)
			if wantsJSON {
				middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewLoginIncorrectError())
				return
			}
			http.Redirect(w, r, loginFailureRedirect, http.StatusFound)
			return
		}
		h.metrics.RecordLogin(auth.StrategyLocal, metrics.LoginResultError)
		slog.Error("local login failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if err := h.login.complete(r.Context(), user); err != nil {
		h.metrics.RecordLogin(auth.StrategyLocal, metrics.LoginResultError)
		slog.Error("failed to store session principal", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	h.metrics.RecordLogin(auth.StrategyLocal, metrics.LoginResultSuccess)

	if wantsJSON {
		middleware.WriteJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
		return
	}
	http.Redirect(w, r, loginSuccessRedirect, http.StatusFound)
}

// LoginStrategy は外部プロバイダーでのログインを処理する。
// codeパラメータが無い場合は認可画面へリダイレクトし、ある場合はコールバックとして処理する。
// GET /api/auth/login/{strategy}
func (h *AuthHandler) LoginStrategy(w http.ResponseWriter, r *http.Request) {
	strategy := chi.URLParam(r, "strategy")
	query := r.URL.Query()

	// 利用者が認可を拒否した場合など
	if idpErr := query.Get("error"); idpErr != "" {
		slog.Warn("oauth provider returned error",
			slog.String("strategy", strategy),
			slog.String("error", idpErr),
		)
		h.metrics.RecordLogin(strategy, metrics.LoginResultFailure)
		h.clearStateCookie(w)
		http.Redirect(w, r, loginFailureRedirect, http.StatusFound)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.beginOAuth(w, r, strategy)
		return
	}

	// stateの検証（CSRF対策）
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch",
			slog.String("strategy", strategy),
		)
		h.metrics.RecordLogin(strategy, metrics.LoginResultFailure)
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("stateパラメータが不正です"))
		return
	}
	h.clearStateCookie(w)

	user, err := h.service.HandleCallback(r.Context(), strategy, code)
	if err != nil {
		h.writeStrategyError(w, strategy, err)
		return
	}

	if err := h.login.complete(r.Context(), user); err != nil {
		h.metrics.RecordLogin(strategy, metrics.LoginResultError)
		slog.Error("failed to store session principal", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	h.metrics.RecordLogin(strategy, metrics.LoginResultSuccess)

	http.Redirect(w, r, loginSuccessRedirect, http.StatusFound)
}

// beginOAuth はstateをCookieに保存し、プロバイダーの認可画面へリダイレクトする。
func (h *AuthHandler) beginOAuth(w http.ResponseWriter, r *http.Request, strategy string) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	url, err := h.service.LoginURL(strategy, state)
	if err != nil {
		h.writeStrategyError(w, strategy, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	h.metrics.RecordLogin(strategy, metrics.LoginResultRedirect)
	http.Redirect(w, r, url, http.StatusFound)
}

// writeStrategyError はOAuthログインのエラーをレスポンスに変換する。
// 未登録のストラテジーは404、認証情報未設定を含むその他のエラーは500とする。
func (h *AuthHandler) writeStrategyError(w http.ResponseWriter, strategy string, err error) {
	if errors.Is(err, auth.ErrUnknownStrategy) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewUnknownStrategyError(strategy))
		return
	}

	h.metrics.RecordLogin(strategy, metrics.LoginResultError)
	slog.Error("oauth login failed",
		slog.String("strategy", strategy),
		slog.String("error", err.Error()),
	)
	middleware.WriteInternalServerError(w)
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Logout はセッションから認証状態を取り除き、whoamiへリダイレクトする。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if userID, err := middleware.UserIDFromContext(r.Context()); err == nil {
		slog.Info("user logged out", slog.String("user_id", userID))
	}

	if err := session.ClearPrincipal(r.Context(), h.sm); err != nil {
		slog.Error("failed to clear session principal", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.Redirect(w, r, logoutRedirect, http.StatusFound)
}

// loginCompleter は認証成功後のセッション更新を行う。
// ローカルログイン・OAuthログイン・ユーザー登録で共通に使用する。
type loginCompleter struct {
	service interface {
		SerializeUser(user *model.User) string
	}
	merger cart.Merger
	sm     *scs.SessionManager
}

// complete はプリンシパルをセッションに保存し、ゲストカートを移行する。
// カートの移行に失敗してもログイン自体は成功とし、ゲストカートはセッションに残す。
// 移行は全件か0件のどちらかとなるため、次回ログイン時に同じ明細が二重に加算されることはない。
func (c *loginCompleter) complete(ctx context.Context, user *model.User) error {
	if err := session.PutPrincipal(ctx, c.sm, c.service.SerializeUser(user)); err != nil {
		return err
	}

	if c.merger == nil {
		return nil
	}
	items := session.GuestCart(ctx, c.sm)
	if len(items) == 0 {
		return nil
	}
	if err := c.merger.MergeGuestCart(ctx, user.ID, items); err != nil {
		slog.Warn("failed to merge guest cart",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	session.ClearGuestCart(ctx, c.sm)
	return nil
}

// isJSONRequest はリクエストボディがJSONかを判定する。
func isJSONRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
