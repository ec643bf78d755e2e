// Package course はコースと出欠カウンタ管理のドメインロジックを提供する。
package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/attendtrack/internal/metrics"
	"github.com/hitoshi/attendtrack/internal/model"
	"github.com/hitoshi/attendtrack/internal/repository"
	"github.com/hitoshi/attendtrack/internal/security"
)

// ListLimit はコース一覧で返す最大件数。
const ListLimit = 100

// メトリクスに記録する操作名
const (
	OperationCreate    = "create"
	OperationUpdate    = "update"
	OperationDelete    = "delete"
	OperationDeleteAll = "delete_all"
	OperationReset     = "reset"
	OperationResetAll  = "reset_all"
)

// Notifier は出欠カウンタの増加を外部へ通知する。
// Notifyは即座に返り、通知の失敗は呼び出し元に影響しない。
type Notifier interface {
	Notify(userID int64, courseName string, status model.CourseStatus)
}

// Service はコース管理のサービス層。
// 作成、一覧、更新、削除、カウンタのリセットのビジネスロジックを提供する。
type Service struct {
	courses   repository.CourseRepository
	notifier  Notifier
	sanitizer security.TextSanitizer
	collector metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierがnilの場合、出欠カウンタが増加しても通知しない。
func NewService(
	courses repository.CourseRepository,
	notifier Notifier,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		courses:   courses,
		notifier:  notifier,
		sanitizer: sanitizer,
		collector: collector,
	}
}

// Find は指定IDのコースを返す。存在しない場合はnilを返す。
func (s *Service) Find(ctx context.Context, courseID int64) (*model.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("コースの取得に失敗しました: %w", err)
	}
	return course, nil
}

// Create はユーザーのコースを作成する。
// 同名コースが既に存在する場合は409、ユーザーが存在しない場合は404のエラーを返す。
func (s *Service) Create(ctx context.Context, userID int64, body Fields) (*model.Course, error) {
	course, err := s.parseCreate(body)
	if err != nil {
		return nil, err
	}
	course.UserID = userID

	existing, err := s.courses.FindByUserAndName(ctx, userID, course.Name)
	if err != nil {
		return nil, fmt.Errorf("同名コースの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateCourseError()
	}

	if err := s.courses.Create(ctx, course); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateKey):
			// 事前確認と保存の間に同名コースが作成された
			return nil, model.NewCourseNameConflictError()
		case errors.Is(err, repository.ErrReferencedRowMissing):
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("コースの作成に失敗しました: %w", err)
	}

	s.collector.RecordCourseOperation(OperationCreate)
	slog.Info("course created",
		slog.Int64("user_id", userID),
		slog.Int64("course_id", course.ID),
	)
	return course, nil
}

// List はユーザーのコースをID順に最大ListLimit件返す。
func (s *Service) List(ctx context.Context, userID int64) ([]*model.Course, error) {
	courses, err := s.courses.ListByUser(ctx, userID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("コース一覧の取得に失敗しました: %w", err)
	}
	if courses == nil {
		courses = []*model.Course{}
	}
	return courses, nil
}

// Update はexistingに対してbodyで指定された項目を更新する。
// existingは所有者確認済みのコースであること。
// present、absent、cancelledのいずれかが増加した場合は、最初に該当した種別で通知する。
func (s *Service) Update(ctx context.Context, existing *model.Course, body Fields) (*model.Course, error) {
	update, err := s.parseUpdate(body)
	if err != nil {
		return nil, err
	}
	if update.IsEmpty() {
		return existing, nil
	}

	if update.Name != nil && *update.Name != existing.Name {
		dup, err := s.courses.FindByUserAndName(ctx, existing.UserID, *update.Name)
		if err != nil {
			return nil, fmt.Errorf("同名コースの確認に失敗しました: %w", err)
		}
		if dup != nil && dup.ID != existing.ID {
			return nil, model.NewDuplicateCourseError()
		}
	}

	updated, err := s.courses.Update(ctx, existing.ID, update)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, model.NewCourseNameConflictError()
		}
		return nil, fmt.Errorf("コースの更新に失敗しました: %w", err)
	}
	if updated == nil {
		return nil, model.NewCourseNotFoundError()
	}
	s.collector.RecordCourseOperation(OperationUpdate)

	if status, ok := model.IncreasedStatus(existing, updated); ok && s.notifier != nil {
		s.notifier.Notify(updated.UserID, updated.Name, status)
	}
	return updated, nil
}

// Delete は指定IDのコースを削除する。
func (s *Service) Delete(ctx context.Context, courseID int64) error {
	deleted, err := s.courses.Delete(ctx, courseID)
	if err != nil {
		return fmt.Errorf("コースの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewCourseNotFoundError()
	}
	s.collector.RecordCourseOperation(OperationDelete)
	return nil
}

// DeleteAll はユーザーの全コースを削除する。コースが無い場合も成功とする。
func (s *Service) DeleteAll(ctx context.Context, userID int64) error {
	n, err := s.courses.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("コースの一括削除に失敗しました: %w", err)
	}
	s.collector.RecordCourseOperation(OperationDeleteAll)
	slog.Info("courses deleted",
		slog.Int64("user_id", userID),
		slog.Int64("count", n),
	)
	return nil
}

// Reset は指定コースの出欠カウンタを0に戻す。名前、基準、日ごとの記録は変更しない。
func (s *Service) Reset(ctx context.Context, courseID int64) (*model.Course, error) {
	course, err := s.courses.ResetCounters(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("出欠カウンタのリセットに失敗しました: %w", err)
	}
	if course == nil {
		return nil, model.NewCourseNotFoundError()
	}
	s.collector.RecordCourseOperation(OperationReset)
	return course, nil
}

// ResetAll はユーザーの全コースの出欠カウンタを0に戻す。
func (s *Service) ResetAll(ctx context.Context, userID int64) error {
	if _, err := s.courses.ResetCountersByUser(ctx, userID); err != nil {
		return fmt.Errorf("出欠カウンタの一括リセットに失敗しました: %w", err)
	}
	s.collector.RecordCourseOperation(OperationResetAll)
	return nil
}
