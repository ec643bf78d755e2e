package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/attendtrack/internal/course"
	"github.com/hitoshi/attendtrack/internal/middleware"
	"github.com/hitoshi/attendtrack/internal/model"
)

// CourseServiceInterface はコースハンドラーが必要とするサービスインターフェース。
type CourseServiceInterface interface {
	// Find は指定IDのコースを返す。存在しない場合はnilを返す。
	Find(ctx context.Context, courseID int64) (*model.Course, error)
	Create(ctx context.Context, userID int64, body course.Fields) (*model.Course, error)
	List(ctx context.Context, userID int64) ([]*model.Course, error)
	// Update は所有者確認済みのexistingを更新する。
	Update(ctx context.Context, existing *model.Course, body course.Fields) (*model.Course, error)
	Delete(ctx context.Context, courseID int64) error
	DeleteAll(ctx context.Context, userID int64) error
	Reset(ctx context.Context, courseID int64) (*model.Course, error)
	ResetAll(ctx context.Context, userID int64) error
}

// CourseIDParam はパス中のコースIDのURLパラメータ名。
const CourseIDParam = "courseId"

// CourseHandler はコース管理のHTTPハンドラー。
// 所有者チェックはルーティング時のガードで行い、ハンドラーはガードが読み込んだコースを使用する。
type CourseHandler struct {
	service CourseServiceInterface
}

// NewCourseHandler はCourseHandlerを生成する。
func NewCourseHandler(service CourseServiceInterface) *CourseHandler {
	return &CourseHandler{service: service}
}

// OwnershipGuard はコースIDのパスに対する所有者チェックミドルウェアを返す。
func (h *CourseHandler) OwnershipGuard() func(next http.Handler) http.Handler {
	return middleware.RequireOwnedResource(middleware.OwnedResourceConfig[model.Course]{
		ResourceParam: CourseIDParam,
		Load:          h.service.Find,
		Owner:         func(c *model.Course) int64 { return c.UserID },
	})
}

// Create はコースを作成する。
// POST /attendance/{userId}
func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.ParsePositiveID(chi.URLParam(r, middleware.UserIDParam))
	if !ok {
		middleware.WriteAPIError(w, model.NewInvalidUserIDError())
		return
	}

	body, err := decodeFields(w, r)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, body)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, created)
}

// List はユーザーのコース一覧を返す。認証不要。
// GET /attendance/{userId}
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.ParsePositiveID(chi.URLParam(r, middleware.UserIDParam))
	if !ok {
		middleware.WriteAPIError(w, model.NewInvalidUserIDError())
		return
	}

	courses, err := h.service.List(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, courses)
}

// Get はガードが読み込んだコースを返す。
// GET /attendance/{userId}/{courseId}
func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guardedCourse(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, existing)
}

// Update はコースを部分更新する。出欠カウンタが増加した場合のカレンダー通知は応答を待たない。
// PUT /attendance/{userId}/{courseId}
func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guardedCourse(w, r)
	if !ok {
		return
	}

	body, err := decodeFields(w, r)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), existing, body)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, updated)
}

// Delete はコースを削除する。
// DELETE /attendance/{userId}/{courseId}
func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guardedCourse(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), existing.ID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeOK(w)
}

// Reset はコースの出欠カウンタを0に戻す。
// POST /attendance/{userId}/{courseId}/reset
func (h *CourseHandler) Reset(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.guardedCourse(w, r)
	if !ok {
		return
	}

	reset, err := h.service.Reset(r.Context(), existing.ID)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, reset)
}

// DeleteAll は呼び出し元本人の全コースを削除する。
// DELETE /attendance/{userId}
func (h *CourseHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewMissingTokenError())
		return
	}

	if err := h.service.DeleteAll(r.Context(), identity.UserID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeOK(w)
}

// ResetAll は呼び出し元本人の全コースの出欠カウンタを0に戻す。
// POST /attendance/{userId}/reset
func (h *CourseHandler) ResetAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteAPIError(w, model.NewMissingTokenError())
		return
	}

	if err := h.service.ResetAll(r.Context(), identity.UserID); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeOK(w)
}

// guardedCourse はOwnershipGuardが読み込んだコースを取得する。
// ガードを経由していない場合は500を返す。
func (h *CourseHandler) guardedCourse(w http.ResponseWriter, r *http.Request) (*model.Course, bool) {
	existing, ok := middleware.ResourceFromContext[model.Course](r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return existing, true
}
