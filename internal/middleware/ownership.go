package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/attendtrack/internal/model"
)

// UserIDParam はパス中の所有者ユーザーIDのURLパラメータ名。
const UserIDParam = "userId"

// resourceContextKey はガードが読み込んだリソースを型ごとに格納するためのキー。
type resourceContextKey[T any] struct{}

// OwnedResourceConfig は所有者チェック付きリソースガードの設定。
type OwnedResourceConfig[T any] struct {
	// ResourceParam はリソースIDのURLパラメータ名。
	ResourceParam string
	// Load はIDからリソースを読み込む。存在しない場合は (nil, nil) を返す。
	Load func(ctx context.Context, id int64) (*T, error)
	// Owner はリソースの所有者ユーザーIDを返す。
	Owner func(resource *T) int64

	// 以下は未指定の場合コース用のエラーを使用する
	InvalidIDError func() *model.APIError
	NotFoundError  func() *model.APIError
	MismatchError  func() *model.APIError
	ForbiddenError func() *model.APIError
}

// RequireOwnedResource はパスのユーザーIDとリソースIDを検証し、
// リソースがそのユーザーに属し、かつ呼び出し元がそのユーザー本人である場合のみ通すミドルウェアを返す。
// 読み込んだリソースはResourceFromContextで取得できる。認証ミドルウェアの後に配置する。
func RequireOwnedResource[T any](cfg OwnedResourceConfig[T]) func(next http.Handler) http.Handler {
	if cfg.InvalidIDError == nil {
		cfg.InvalidIDError = model.NewInvalidCourseIDError
	}
	if cfg.NotFoundError == nil {
		cfg.NotFoundError = model.NewCourseNotFoundError
	}
	if cfg.MismatchError == nil {
		cfg.MismatchError = model.NewCourseOwnerMismatchError
	}
	if cfg.ForbiddenError == nil {
		cfg.ForbiddenError = func() *model.APIError { return model.NewForbiddenError("this course") }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteAPIError(w, model.NewMissingTokenError())
				return
			}

			userID, ok := ParsePositiveID(chi.URLParam(r, UserIDParam))
			if !ok {
				WriteAPIError(w, model.NewInvalidUserIDError())
				return
			}
			resourceID, ok := ParsePositiveID(chi.URLParam(r, cfg.ResourceParam))
			if !ok {
				WriteAPIError(w, cfg.InvalidIDError())
				return
			}

			resource, err := cfg.Load(r.Context(), resourceID)
			if err != nil {
				slog.Error("failed to load owned resource",
					slog.String("param", cfg.ResourceParam),
					slog.Int64("resource_id", resourceID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if resource == nil {
				WriteAPIError(w, cfg.NotFoundError())
				return
			}
			if cfg.Owner(resource) != userID {
				WriteAPIError(w, cfg.MismatchError())
				return
			}
			if identity.UserID != userID {
				WriteAPIError(w, cfg.ForbiddenError())
				return
			}

			ctx := context.WithValue(r.Context(), resourceContextKey[T]{}, resource)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ResourceFromContext はRequireOwnedResourceが読み込んだリソースを取得する。
func ResourceFromContext[T any](ctx context.Context) (*T, bool) {
	resource, ok := ctx.Value(resourceContextKey[T]{}).(*T)
	return resource, ok && resource != nil
}

// RequireSelf はパスのユーザーIDが呼び出し元本人である場合のみ通すミドルウェアを返す。
// 認証ミドルウェアの後に配置する。
func RequireSelf() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				WriteAPIError(w, model.NewMissingTokenError())
				return
			}

			userID, ok := ParsePositiveID(chi.URLParam(r, UserIDParam))
			if !ok {
				WriteAPIError(w, model.NewInvalidUserIDError())
				return
			}
			if identity.UserID != userID {
				WriteAPIError(w, model.NewForbiddenError("this resource"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ParsePositiveID はURLパラメータを正の整数IDとして解釈する。
func ParsePositiveID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
