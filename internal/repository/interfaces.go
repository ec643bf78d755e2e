// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/attendtrack/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByGoogleID はGoogleアカウントのsubでユーザーを検索する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// Create はユーザーを作成し、採番されたIDとタイムスタンプをuserに設定する。
	// google_idが重複した場合はErrDuplicateKeyをラップしたエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はプロフィール項目とリフレッシュトークンを更新する。
	UpdateProfile(ctx context.Context, user *model.User) error
}

// CourseRepository はコースデータの永続化インターフェース。
type CourseRepository interface {
	// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Course, error)

	// FindByUserAndName はユーザー内の同名コースを検索する。見つからない場合はnilを返す。
	FindByUserAndName(ctx context.Context, userID int64, name string) (*model.Course, error)

	// ListByUser はユーザーのコースをID順に最大limit件取得する。
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Course, error)

	// Create はコースを作成し、採番されたIDとタイムスタンプをcourseに設定する。
	// (user_id, name) が重複した場合はErrDuplicateKey、
	// user_idが存在しない場合はErrReferencedRowMissingをラップしたエラーを返す。
	Create(ctx context.Context, course *model.Course) error

	// Update は指定された項目のみを更新し、更新後のコースを返す。見つからない場合はnilを返す。
	Update(ctx context.Context, id int64, update CourseUpdate) (*model.Course, error)

	// Delete は指定IDのコースを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// DeleteByUser はユーザーの全コースを削除し、削除件数を返す。
	DeleteByUser(ctx context.Context, userID int64) (int64, error)

	// ResetCounters は出欠カウンタを0に戻し、更新後のコースを返す。見つからない場合はnilを返す。
	ResetCounters(ctx context.Context, id int64) (*model.Course, error)

	// ResetCountersByUser はユーザーの全コースの出欠カウンタを0に戻し、更新件数を返す。
	ResetCountersByUser(ctx context.Context, userID int64) (int64, error)
}

// CourseUpdate はコースの部分更新内容を表す。nilの項目は更新しない。
type CourseUpdate struct {
	Name         *string
	TimeOfCourse *string
	TotalDays    *int
	Present      *int
	Absent       *int
	Cancelled    *int
	Criteria     *int
	Days         *model.Days
}

// IsEmpty は更新対象の項目が1つもない場合にtrueを返す。
func (u CourseUpdate) IsEmpty() bool {
	return u.Name == nil && u.TimeOfCourse == nil && u.TotalDays == nil &&
		u.Present == nil && u.Absent == nil && u.Cancelled == nil &&
		u.Criteria == nil && u.Days == nil
}
