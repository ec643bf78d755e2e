package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/attendtrack/internal/model"
)

const courseColumns = `id, user_id, name, time_of_course, total_days, present, absent, cancelled,
	criteria, days, created_at, updated_at`

// PostgresCourseRepo はPostgreSQLを使用したコースリポジトリ。
type PostgresCourseRepo struct {
	db *sqlx.DB
}

// NewPostgresCourseRepo はPostgresCourseRepoを生成する。
func NewPostgresCourseRepo(db *sqlx.DB) *PostgresCourseRepo {
	return &PostgresCourseRepo{db: db}
}

// FindByID は指定IDのコースを取得する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByID(ctx context.Context, id int64) (*model.Course, error) {
	course := &model.Course{}
	err := r.db.GetContext(ctx, course, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course by ID: %w", err)
	}
	return course, nil
}

// FindByUserAndName はユーザー内の同名コースを検索する。見つからない場合はnilを返す。
func (r *PostgresCourseRepo) FindByUserAndName(ctx context.Context, userID int64, name string) (*model.Course, error) {
	course := &model.Course{}
	err := r.db.GetContext(ctx, course,
		`SELECT `+courseColumns+` FROM courses WHERE user_id = $1 AND name = $2`,
		userID, name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find course by name: %w", err)
	}
	return course, nil
}

// ListByUser はユーザーのコースをID順に最大limit件取得する。
func (r *PostgresCourseRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.Course, error) {
	courses := []*model.Course{}
	err := r.db.SelectContext(ctx, &courses,
		`SELECT `+courseColumns+` FROM courses WHERE user_id = $1 ORDER BY id LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	return courses, nil
}

// Create はコースを作成する。
func (r *PostgresCourseRepo) Create(ctx context.Context, course *model.Course) error {
	if course.Days == nil {
		course.Days = model.EmptyDays()
	}
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO courses (user_id, name, time_of_course, total_days, present, absent, cancelled, criteria, days)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		course.UserID, course.Name, course.TimeOfCourse, course.TotalDays,
		course.Present, course.Absent, course.Cancelled, course.Criteria, course.Days,
	).Scan(&course.ID, &course.CreatedAt, &course.UpdatedAt)
	if err != nil {
		if sentinel := classify(err); sentinel != nil {
			return fmt.Errorf("failed to insert course: %w: %w", sentinel, err)
		}
		return fmt.Errorf("failed to insert course: %w", err)
	}
	return nil
}

// Update は指定された項目のみを更新する。更新項目が無い場合は現在の値を返す。
func (r *PostgresCourseRepo) Update(ctx context.Context, id int64, update CourseUpdate) (*model.Course, error) {
	if update.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.TimeOfCourse != nil {
		add("time_of_course", *update.TimeOfCourse)
	}
	if update.TotalDays != nil {
		add("total_days", *update.TotalDays)
	}
	if update.Present != nil {
		add("present", *update.Present)
	}
	if update.Absent != nil {
		add("absent", *update.Absent)
	}
	if update.Cancelled != nil {
		add("cancelled", *update.Cancelled)
	}
	if update.Criteria != nil {
		add("criteria", *update.Criteria)
	}
	if update.Days != nil {
		add("days", *update.Days)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE courses SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), courseColumns,
	)

	course := &model.Course{}
	err := r.db.QueryRowxContext(ctx, query, args...).StructScan(course)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if sentinel := classify(err); sentinel != nil {
			return nil, fmt.Errorf("failed to update course: %w: %w", sentinel, err)
		}
		return nil, fmt.Errorf("failed to update course: %w", err)
	}
	return course, nil
}

// Delete は指定IDのコースを削除する。
func (r *PostgresCourseRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete course: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByUser はユーザーの全コースを削除する。
func (r *PostgresCourseRepo) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete courses: %w", err)
	}
	return result.RowsAffected()
}

// ResetCounters はpresent、absent、cancelledを0に戻す。
func (r *PostgresCourseRepo) ResetCounters(ctx context.Context, id int64) (*model.Course, error) {
	course := &model.Course{}
	err := r.db.GetContext(ctx, course,
		`UPDATE courses SET present = 0, absent = 0, cancelled = 0, updated_at = now()
		 WHERE id = $1
		 RETURNING `+courseColumns,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reset course: %w", err)
	}
	return course, nil
}

// ResetCountersByUser はユーザーの全コースのカウンタを0に戻す。
func (r *PostgresCourseRepo) ResetCountersByUser(ctx context.Context, userID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE courses SET present = 0, absent = 0, cancelled = 0, updated_at = now()
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset courses: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ CourseRepository = (*PostgresCourseRepo)(nil)
