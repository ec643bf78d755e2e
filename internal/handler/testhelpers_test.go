package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/attendtrack/internal/auth"
	"github.com/hitoshi/attendtrack/internal/course"
	"github.com/hitoshi/attendtrack/internal/middleware"
	"github.com/hitoshi/attendtrack/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	exchangeCodeFn   func(ctx context.Context, code string) (*auth.Session, error)
	getCurrentUserFn func(ctx context.Context, userID int64) (*model.User, error)
}

func (m *mockAuthService) ExchangeCodeForSession(ctx context.Context, code string) (*auth.Session, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, userID)
	}
	return nil, nil
}

type mockCourseService struct {
	findFn      func(ctx context.Context, courseID int64) (*model.Course, error)
	createFn    func(ctx context.Context, userID int64, body course.Fields) (*model.Course, error)
	listFn      func(ctx context.Context, userID int64) ([]*model.Course, error)
	updateFn    func(ctx context.Context, existing *model.Course, body course.Fields) (*model.Course, error)
	deleteFn    func(ctx context.Context, courseID int64) error
	deleteAllFn func(ctx context.Context, userID int64) error
	resetFn     func(ctx context.Context, courseID int64) (*model.Course, error)
	resetAllFn  func(ctx context.Context, userID int64) error
}

func (m *mockCourseService) Find(ctx context.Context, courseID int64) (*model.Course, error) {
	if m.findFn != nil {
		return m.findFn(ctx, courseID)
	}
	return nil, nil
}
func (m *mockCourseService) Create(ctx context.Context, userID int64, body course.Fields) (*model.Course, error) {
	return m.createFn(ctx, userID, body)
}
func (m *mockCourseService) List(ctx context.Context, userID int64) ([]*model.Course, error) {
	return m.listFn(ctx, userID)
}
func (m *mockCourseService) Update(ctx context.Context, existing *model.Course, body course.Fields) (*model.Course, error) {
	return m.updateFn(ctx, existing, body)
}
func (m *mockCourseService) Delete(ctx context.Context, courseID int64) error {
	return m.deleteFn(ctx, courseID)
}
func (m *mockCourseService) DeleteAll(ctx context.Context, userID int64) error {
	return m.deleteAllFn(ctx, userID)
}
func (m *mockCourseService) Reset(ctx context.Context, courseID int64) (*model.Course, error) {
	return m.resetFn(ctx, courseID)
}
func (m *mockCourseService) ResetAll(ctx context.Context, userID int64) error {
	return m.resetAllFn(ctx, userID)
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- ヘルパー ---

var testTokens = auth.NewTokenService([]byte("handler-test-secret"), 30*time.Minute)

// issueToken はテスト用のセッショントークンを発行する。
func issueToken(t *testing.T, userID int64) string {
	t.Helper()
	token, err := testTokens.Issue(userID, "user@example.com")
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return token
}

// newTestRouter はテスト用の依存関係でルーターを構築する。
func newTestRouter(t *testing.T, authSvc AuthServiceInterface, courseSvc CourseServiceInterface) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	if authSvc == nil {
		authSvc = &mockAuthService{}
	}
	if courseSvc == nil {
		courseSvc = &mockCourseService{}
	}

	return NewRouter(&RouterDeps{
		TokenVerifier:      testTokens,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		RateLimiter:        rl,
		Logger:             slog.New(slog.NewJSONHandler(io.Discard, nil)),
		HealthChecker:      &mockHealthChecker{},
		AuthService:        authSvc,
		AuthConfig:         AuthHandlerConfig{SessionMaxAge: 1800},
		CourseService:      courseSvc,
	})
}

// doRequest はルーターにリクエストを送り、レスポンスを返す。tokenが空でない場合はCookieに設定する。
func doRequest(t *testing.T, router http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// errorMessage はエラーレスポンスの error フィールドを返す。
func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v (raw: %s)", err, w.Body.String())
	}
	return body.Error
}

// courseEnvelope は {ok, data: Course} 形式のレスポンス。
type courseEnvelope struct {
	OK   bool         `json:"ok"`
	Data model.Course `json:"data"`
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode body: %v (raw: %s)", err, w.Body.String())
	}
}

func newRequestWithBearer(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newTestRouterWithMetrics(t *testing.T, metricsHandler http.Handler) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		TokenVerifier:  testTokens,
		RateLimiter:    rl,
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		MetricsHandler: metricsHandler,
		AuthService:    &mockAuthService{},
		CourseService:  &mockCourseService{},
	})
}
