package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// コース作成時の既定値
const (
	DefaultTotalDays = 35
	DefaultCriteria  = 75
)

// Course はユーザーが管理する授業と出欠カウンタを表す。
// (UserID, Name) はユーザー内で一意。
type Course struct {
	ID           int64     `json:"id" db:"id"`
	UserID       int64     `json:"userId" db:"user_id"`
	Name         string    `json:"IndivCourse" db:"name"`
	TimeOfCourse string    `json:"timeofcourse" db:"time_of_course"`
	TotalDays    int       `json:"Totaldays" db:"total_days"`
	Present      int       `json:"present" db:"present"`
	Absent       int       `json:"absent" db:"absent"`
	Cancelled    int       `json:"cancelled" db:"cancelled"`
	Criteria     int       `json:"criteria" db:"criteria"`
	Days         Days      `json:"days" db:"days"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// CourseStatus は出欠カウンタの種別を表す。
type CourseStatus string

const (
	StatusPresent   CourseStatus = "Present"
	StatusAbsent    CourseStatus = "Absent"
	StatusCancelled CourseStatus = "Cancelled"
)

// IncreasedStatus はbeforeからafterへの更新で増加したカウンタの種別を返す。
// 複数増加した場合は present → absent → cancelled の順で最初に該当したものを返す。
func IncreasedStatus(before, after *Course) (CourseStatus, bool) {
	switch {
	case after.Present > before.Present:
		return StatusPresent, true
	case after.Absent > before.Absent:
		return StatusAbsent, true
	case after.Cancelled > before.Cancelled:
		return StatusCancelled, true
	}
	return "", false
}

// Days は日ごとの出欠記録を表すJSON配列。
// 内容は解釈せず、そのまま保存・返却する。
type Days json.RawMessage

// EmptyDays は空の日ごと記録を返す。
func EmptyDays() Days {
	return Days("[]")
}

// DaysFromJSON はJSON値からDaysを生成する。配列以外の値は空配列として扱う。
func DaysFromJSON(raw json.RawMessage) Days {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' || !json.Valid(trimmed) {
		return EmptyDays()
	}
	return Days(bytes.Clone(trimmed))
}

// MarshalJSON はDaysをそのままJSON配列として出力する。
func (d Days) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("[]"), nil
	}
	return []byte(d), nil
}

// UnmarshalJSON はJSON値をDaysとして取り込む。配列以外は空配列になる。
func (d *Days) UnmarshalJSON(data []byte) error {
	*d = DaysFromJSON(data)
	return nil
}

// Value はdriver.Valuerを実装する。JSONBカラムに書き込む。
func (d Days) Value() (driver.Value, error) {
	if len(d) == 0 {
		return "[]", nil
	}
	return string(d), nil
}

// Scan はsql.Scannerを実装する。JSONBカラムから読み込む。
func (d *Days) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = EmptyDays()
	case []byte:
		*d = Days(bytes.Clone(v))
	case string:
		*d = Days(v)
	default:
		return fmt.Errorf("unsupported type for days: %T", src)
	}
	return nil
}
