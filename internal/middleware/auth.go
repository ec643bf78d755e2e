// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/attendtrack/internal/auth"
	"github.com/hitoshi/attendtrack/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "sessionToken"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(token string) (*auth.SessionClaims, error)
}

// Identity は検証済みセッショントークンから得た認証済みユーザー。
type Identity struct {
	UserID int64
	Email  string
}

// NewOptionalAuthMiddleware はトークンが有効な場合のみIdentityをコンテキストに注入するミドルウェアを返す。
// トークンが無い、または不正な場合もリクエストはそのまま通す。
func NewOptionalAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims)))
		})
	}
}

// NewRequireAuthMiddleware は有効なセッショントークンを必須とするミドルウェアを返す。
// トークンが無い場合と不正な場合で異なる401レスポンスを返す。
func NewRequireAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				WriteAPIError(w, model.NewMissingTokenError())
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				WriteAPIError(w, model.NewInvalidTokenError())
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), claims)))
		})
	}
}

// extractToken はCookie、次にAuthorizationヘッダー（Bearer）からトークンを取り出す。
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func withIdentity(ctx context.Context, claims *auth.SessionClaims) context.Context {
	id := Identity{UserID: claims.UserID, Email: claims.Email}
	setLoggedUserID(ctx, id.UserID)
	return ContextWithIdentity(ctx, id)
}

// IdentityFromContext はリクエストコンテキストから認証済みユーザーを取得する。
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	if !ok || id.UserID <= 0 {
		return Identity{}, false
	}
	return id, true
}

// ContextWithIdentity はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
