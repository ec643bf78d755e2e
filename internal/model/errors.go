package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントには Message のみを {"error": Message} として返す。
type APIError struct {
	Code    string // エラーコード
	Message string // エラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	// 400
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidUserID      = "INVALID_USER_ID"
	ErrCodeInvalidCourseID    = "INVALID_COURSE_ID"
	ErrCodeInvalidCourseName  = "INVALID_COURSE_NAME"
	ErrCodeInvalidField       = "INVALID_FIELD"
	ErrCodeMissingCode        = "MISSING_CODE"
	ErrCodeIncompleteIdentity = "INCOMPLETE_IDENTITY"

	// 401
	ErrCodeMissingToken          = "MISSING_TOKEN"
	ErrCodeInvalidToken          = "INVALID_OR_EXPIRED_TOKEN"
	ErrCodeTokenExchangeFailed   = "TOKEN_EXCHANGE_FAILED"
	ErrCodeInvalidIdentityToken  = "INVALID_IDENTITY_TOKEN"
	ErrCodeIdentityProviderError = "IDENTITY_PROVIDER_ERROR"

	// 403
	ErrCodeCourseOwnerMismatch = "COURSE_OWNER_MISMATCH"
	ErrCodeForbidden           = "FORBIDDEN"

	// 404
	ErrCodeCourseNotFound = "COURSE_NOT_FOUND"
	ErrCodeUserNotFound   = "USER_NOT_FOUND"
	ErrCodeRouteNotFound  = "ROUTE_NOT_FOUND"

	// 405
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"

	// 409
	ErrCodeDuplicateCourse = "DUPLICATE_COURSE"

	// 429
	ErrCodeRateLimited = "RATE_LIMITED"

	// 500
	ErrCodeServerMisconfigured = "SERVER_MISCONFIGURED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{Code: ErrCodeInvalidRequest, Message: "Request body must be a JSON object."}
}

// NewInvalidUserIDError はパスのユーザーIDが不正な場合のエラーを生成する。
func NewInvalidUserIDError() *APIError {
	return &APIError{Code: ErrCodeInvalidUserID, Message: "Invalid user ID."}
}

// NewInvalidCourseIDError はパスのコースIDが不正な場合のエラーを生成する。
func NewInvalidCourseIDError() *APIError {
	return &APIError{Code: ErrCodeInvalidCourseID, Message: "Invalid course ID."}
}

// NewCourseNameRequiredError はコース作成時にコース名が無い場合のエラーを生成する。
func NewCourseNameRequiredError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidCourseName,
		Message: "Course name is required and must be a non-empty string.",
	}
}

// NewInvalidCourseNameError はコース更新時にコース名が不正な場合のエラーを生成する。
func NewInvalidCourseNameError() *APIError {
	return &APIError{Code: ErrCodeInvalidCourseName, Message: "Course name must be a non-empty string."}
}

// NewInvalidFieldError は数値フィールドが非負整数として解釈できない場合のエラーを生成する。
func NewInvalidFieldError(field string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidField,
		Message: fmt.Sprintf("%s must be a non-negative integer.", field),
	}
}

// NewInvalidTextFieldError は文字列フィールドに文字列以外が渡された場合のエラーを生成する。
func NewInvalidTextFieldError(field string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidField,
		Message: fmt.Sprintf("%s must be a string.", field),
	}
}

// NewMissingCodeError は認可コードが無い場合のエラーを生成する。
func NewMissingCodeError() *APIError {
	return &APIError{Code: ErrCodeMissingCode, Message: "Missing Google auth code"}
}

// NewIncompleteIdentityError はIDトークンにsubまたはemailが無い場合のエラーを生成する。
func NewIncompleteIdentityError() *APIError {
	return &APIError{Code: ErrCodeIncompleteIdentity, Message: "Missing Google user info"}
}

// NewMissingTokenError はセッショントークンが無い場合のエラーを生成する。
func NewMissingTokenError() *APIError {
	return &APIError{Code: ErrCodeMissingToken, Message: "Missing token"}
}

// NewInvalidTokenError はセッショントークンが不正または期限切れの場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{Code: ErrCodeInvalidToken, Message: "Invalid or expired token"}
}

// NewTokenExchangeFailedError はトークン交換でIDトークンが得られなかった場合のエラーを生成する。
func NewTokenExchangeFailedError() *APIError {
	return &APIError{Code: ErrCodeTokenExchangeFailed, Message: "Failed to get ID token"}
}

// NewInvalidIdentityTokenError はIDトークンの検証に失敗した場合のエラーを生成する。
func NewInvalidIdentityTokenError() *APIError {
	return &APIError{Code: ErrCodeInvalidIdentityToken, Message: "Invalid Google token"}
}

// NewIdentityProviderError はIdPとの通信や認可コード交換に失敗した場合のエラーを生成する。
// 期限切れコード等が主因のため401として扱う。
func NewIdentityProviderError() *APIError {
	return &APIError{Code: ErrCodeIdentityProviderError, Message: "Google authentication failed"}
}

// NewCourseOwnerMismatchError はコースがパスのユーザーに属さない場合のエラーを生成する。
func NewCourseOwnerMismatchError() *APIError {
	return &APIError{
		Code:    ErrCodeCourseOwnerMismatch,
		Message: "Course does not belong to the provided user ID.",
	}
}

// NewForbiddenError は認証ユーザーがパスのユーザーと一致しない場合のエラーを生成する。
// resourceには "this course" や "this resource" を渡す。
func NewForbiddenError(resource string) *APIError {
	return &APIError{
		Code:    ErrCodeForbidden,
		Message: fmt.Sprintf("You do not have permission to access %s.", resource),
	}
}

// NewCourseNotFoundError はコースが存在しない場合のエラーを生成する。
func NewCourseNotFoundError() *APIError {
	return &APIError{Code: ErrCodeCourseNotFound, Message: "Course not found."}
}

// NewUserNotFoundError はユーザーが存在しない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{Code: ErrCodeUserNotFound, Message: "User not found."}
}

// NewRouteNotFoundError は存在しないパスへのリクエストのエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{Code: ErrCodeRouteNotFound, Message: "Not found."}
}

// NewMethodNotAllowedError はパスが対応していないメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{Code: ErrCodeMethodNotAllowed, Message: "Method not allowed."}
}

// NewDuplicateCourseError は同名コースが既に存在する場合のエラーを生成する。
func NewDuplicateCourseError() *APIError {
	return &APIError{Code: ErrCodeDuplicateCourse, Message: "Course with that name already exists."}
}

// NewCourseNameConflictError はDBの一意制約違反を検出した場合のエラーを生成する。
func NewCourseNameConflictError() *APIError {
	return &APIError{Code: ErrCodeDuplicateCourse, Message: "Course name must be unique for each user."}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{Code: ErrCodeRateLimited, Message: "Too many requests. Please try again later."}
}

// NewServerMisconfiguredError はサーバー設定不備のエラーを生成する。
func NewServerMisconfiguredError() *APIError {
	return &APIError{Code: ErrCodeServerMisconfigured, Message: "Server misconfiguration"}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{Code: ErrCodeInternal, Message: "Unexpected server error."}
}
