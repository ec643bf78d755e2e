package course

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/hitoshi/attendtrack/internal/metrics"
	"github.com/hitoshi/attendtrack/internal/model"
	"github.com/hitoshi/attendtrack/internal/repository"
)

// --- モック ---

type mockCourseRepo struct {
	findByIDFn            func(ctx context.Context, id int64) (*model.Course, error)
	findByUserAndNameFn   func(ctx context.Context, userID int64, name string) (*model.Course, error)
	listByUserFn          func(ctx context.Context, userID int64, limit int) ([]*model.Course, error)
	createFn              func(ctx context.Context, course *model.Course) error
	updateFn              func(ctx context.Context, id int64, update repository.CourseUpdate) (*model.Course, error)
	deleteFn              func(ctx context.Context, id int64) (bool, error)
	deleteByUserFn        func(ctx context.Context, userID int64) (int64, error)
	resetCountersFn       func(ctx context.Context, id int64) (*model.Course, error)
	resetCountersByUserFn func(ctx context.Context, userID int64) (int64, error)
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id int64) (*model.Course, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockCourseRepo) FindByUserAndName(ctx context.Context, userID int64, name string) (*model.Course, error) {
	if m.findByUserAndNameFn != nil {
		return m.findByUserAndNameFn(ctx, userID, name)
	}
	return nil, nil
}
func (m *mockCourseRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Course, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, limit)
	}
	return nil, nil
}
func (m *mockCourseRepo) Create(ctx context.Context, course *model.Course) error {
	if m.createFn != nil {
		return m.createFn(ctx, course)
	}
	return nil
}
func (m *mockCourseRepo) Update(ctx context.Context, id int64, update repository.CourseUpdate) (*model.Course, error) {
	return m.updateFn(ctx, id, update)
}
func (m *mockCourseRepo) Delete(ctx context.Context, id int64) (bool, error) {
	return m.deleteFn(ctx, id)
}
func (m *mockCourseRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	return m.deleteByUserFn(ctx, userID)
}
func (m *mockCourseRepo) ResetCounters(ctx context.Context, id int64) (*model.Course, error) {
	return m.resetCountersFn(ctx, id)
}
func (m *mockCourseRepo) ResetCountersByUser(ctx context.Context, userID int64) (int64, error) {
	return m.resetCountersByUserFn(ctx, userID)
}

type notifyCall struct {
	userID     int64
	courseName string
	status     model.CourseStatus
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (m *mockNotifier) Notify(userID int64, courseName string, status model.CourseStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, notifyCall{userID: userID, courseName: courseName, status: status})
}

type mockCollector struct {
	metrics.NopCollector
	operations []string
}

func (m *mockCollector) RecordCourseOperation(operation string) {
	m.operations = append(m.operations, operation)
}

// --- ヘルパー ---

func newTestService(repo *mockCourseRepo, notifier *mockNotifier) (*Service, *mockCollector) {
	collector := &mockCollector{}
	var n Notifier
	if notifier != nil {
		n = notifier
	}
	return NewService(repo, n, nil, collector), collector
}

// fields はJSONオブジェクト文字列をFieldsに変換する。
func fields(t *testing.T, body string) Fields {
	t.Helper()
	var f Fields
	if err := json.Unmarshal([]byte(body), &f); err != nil {
		t.Fatalf("invalid test body %s: %v", body, err)
	}
	return f
}

func assertAPIErrorCode(t *testing.T, err error, wantCode, wantMessage string) {
	t.Helper()
	apiErr, ok := err.(*model.APIError)
	if !ok {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("Code = %q, want %q", apiErr.Code, wantCode)
	}
	if wantMessage != "" && apiErr.Message != wantMessage {
		t.Errorf("Message = %q, want %q", apiErr.Message, wantMessage)
	}
}

func intPtr(v int) *int { return &v }
