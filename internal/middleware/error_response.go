package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/attendtrack/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
type ErrorResponseBody struct {
	Error string `json:"error"`
}

// StatusForCode はAPIエラーコードに対応するHTTPステータスコードを返す。
func StatusForCode(code string) int {
	switch code {
	case model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidUserID,
		model.ErrCodeInvalidCourseID,
		model.ErrCodeInvalidCourseName,
		model.ErrCodeInvalidField,
		model.ErrCodeMissingCode,
		model.ErrCodeIncompleteIdentity:
		return http.StatusBadRequest
	case model.ErrCodeMissingToken,
		model.ErrCodeInvalidToken,
		model.ErrCodeTokenExchangeFailed,
		model.ErrCodeInvalidIdentityToken,
		model.ErrCodeIdentityProviderError:
		return http.StatusUnauthorized
	case model.ErrCodeCourseOwnerMismatch, model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeCourseNotFound, model.ErrCodeUserNotFound, model.ErrCodeRouteNotFound:
		return http.StatusNotFound
	case model.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case model.ErrCodeDuplicateCourse:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteAPIError はAPIエラーをコードに対応するステータスで書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusForCode(apiErr.Code), apiErr)
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{Error: apiErr.Message})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteAPIError(w, model.NewInternalError())
}

// WriteError はerrがAPIErrorであればそのまま返し、それ以外は内部エラーとしてログに記録して500を返す。
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteAPIError(w, apiErr)
		return
	}

	slog.Error("unexpected error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("request_id", RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
	WriteInternalServerError(w)
}
