package course

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/hitoshi/attendtrack/internal/model"
	"github.com/hitoshi/attendtrack/internal/repository"
)

// Fields はリクエストボディのJSONオブジェクトをキーごとに保持する。
// 値の解釈はキーごとに行うため、未知のキーは無視される。
type Fields map[string]json.RawMessage

// リクエストボディのキー
const (
	FieldName         = "IndivCourse"
	FieldTimeOfCourse = "timeofcourse"
	FieldTotalDays    = "Totaldays"
	FieldPresent      = "present"
	FieldAbsent       = "absent"
	FieldCancelled    = "cancelled"
	FieldCriteria     = "criteria"
	FieldDays         = "days"
)

// parseCreate は作成リクエストからコースを組み立てる。
// 数値フィールドは解釈できない値や0以下の値を既定値で置き換える。
func (s *Service) parseCreate(body Fields) (*model.Course, error) {
	name, ok := s.text(body[FieldName])
	if !ok || name == "" {
		return nil, model.NewCourseNameRequiredError()
	}

	course := &model.Course{
		Name:      name,
		TotalDays: countOrDefault(body[FieldTotalDays], model.DefaultTotalDays),
		Present:   countOrDefault(body[FieldPresent], 0),
		Absent:    countOrDefault(body[FieldAbsent], 0),
		Cancelled: countOrDefault(body[FieldCancelled], 0),
		Criteria:  countOrDefault(body[FieldCriteria], model.DefaultCriteria),
		Days:      model.EmptyDays(),
	}
	if timeOfCourse, ok := s.text(body[FieldTimeOfCourse]); ok {
		course.TimeOfCourse = timeOfCourse
	}
	if raw, ok := body[FieldDays]; ok {
		course.Days = model.DaysFromJSON(raw)
	}
	return course, nil
}

// parseUpdate は更新リクエストから部分更新内容を組み立てる。
// 指定されたキーのみを対象とし、値が不正な場合はそのフィールドのエラーを返す。
func (s *Service) parseUpdate(body Fields) (repository.CourseUpdate, error) {
	var update repository.CourseUpdate

	if raw, ok := body[FieldName]; ok {
		name, ok := s.text(raw)
		if !ok || name == "" {
			return update, model.NewInvalidCourseNameError()
		}
		update.Name = &name
	}

	if raw, ok := body[FieldTimeOfCourse]; ok {
		timeOfCourse := ""
		if !isNull(raw) {
			v, ok := s.text(raw)
			if !ok {
				return update, model.NewInvalidTextFieldError(FieldTimeOfCourse)
			}
			timeOfCourse = v
		}
		update.TimeOfCourse = &timeOfCourse
	}

	counts := []struct {
		field string
		dst   **int
	}{
		{FieldTotalDays, &update.TotalDays},
		{FieldPresent, &update.Present},
		{FieldAbsent, &update.Absent},
		{FieldCancelled, &update.Cancelled},
		{FieldCriteria, &update.Criteria},
	}
	for _, c := range counts {
		raw, ok := body[c.field]
		if !ok {
			continue
		}
		v, ok := parseCount(raw)
		if !ok {
			return update, model.NewInvalidFieldError(c.field)
		}
		*c.dst = &v
	}

	if raw, ok := body[FieldDays]; ok {
		days := model.DaysFromJSON(raw)
		update.Days = &days
	}

	return update, nil
}

// text はJSON文字列をサニタイズして返す。文字列以外の場合はfalseを返す。
func (s *Service) text(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return s.sanitizer.Sanitize(v), true
}

// countOrDefault はparseCountで解釈できない値と0を既定値に置き換える。
func countOrDefault(raw json.RawMessage, def int) int {
	if v, ok := parseCount(raw); ok && v > 0 {
		return v
	}
	return def
}

// parseCount はJSONの数値または数値文字列を非負整数として解釈する。
// 小数部を持つ値、負の値、INTEGERカラムの範囲を超える値は不正とする。
func parseCount(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || isNull(raw) {
		return 0, false
	}

	var f float64
	var s string
	switch {
	case json.Unmarshal(raw, &f) == nil:
	case json.Unmarshal(raw, &s) == nil:
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
