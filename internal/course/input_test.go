package course

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/attendtrack/internal/model"
	"github.com/hitoshi/attendtrack/internal/repository"
)

func TestParseCount(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{`30`, 30, true},
		{`0`, 0, true},
		{`30.0`, 30, true},
		{`"42"`, 42, true},
		{`" 7 "`, 7, true},
		{`-1`, 0, false},
		{`2.5`, 0, false},
		{`"abc"`, 0, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`true`, 0, false},
		{`[1]`, 0, false},
		{`3000000000`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := parseCount(json.RawMessage(tt.raw))
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("parseCount(%s) = (%d, %v), want (%d, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseCreate_AppliesDefaults(t *testing.T) {
	svc, _ := newTestService(&mockCourseRepo{}, nil)

	got, err := svc.parseCreate(fields(t, `{"IndivCourse":"CS101"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &model.Course{
		Name:      "CS101",
		TotalDays: 35,
		Criteria:  75,
		Days:      model.EmptyDays(),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("course mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCreate_CoercesValues(t *testing.T) {
	svc, _ := newTestService(&mockCourseRepo{}, nil)

	body := `{
		"IndivCourse": "  <b>Linear Algebra</b> ",
		"timeofcourse": "09:00",
		"Totaldays": "40",
		"present": 3,
		"absent": "x",
		"cancelled": -2,
		"criteria": 0,
		"days": [{"date":"2024-01-01","status":"present"}],
		"unknown": true
	}`
	got, err := svc.parseCreate(fields(t, body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := &model.Course{
		Name:         "Linear Algebra",
		TimeOfCourse: "09:00",
		TotalDays:    40,
		Present:      3,
		Absent:       0,
		Cancelled:    0,
		Criteria:     75,
		Days:         model.Days(`[{"date":"2024-01-01","status":"present"}]`),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("course mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCreate_NonArrayDaysAndTime(t *testing.T) {
	svc, _ := newTestService(&mockCourseRepo{}, nil)

	got, err := svc.parseCreate(fields(t, `{"IndivCourse":"Chem","timeofcourse":930,"days":{"a":1}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TimeOfCourse != "" {
		t.Errorf("TimeOfCourse = %q, want empty", got.TimeOfCourse)
	}
	if string(got.Days) != "[]" {
		t.Errorf("Days = %s, want []", got.Days)
	}
}

// TestParseLongText は長いコース名と時間帯が切り詰められずに受け付けられることを検証する。
func TestParseLongText(t *testing.T) {
	svc, _ := newTestService(&mockCourseRepo{}, nil)

	longName := strings.Repeat("a", 300)
	longTime := strings.Repeat("9", 300)
	body := fields(t, `{"IndivCourse":"`+longName+`","timeofcourse":"`+longTime+`"}`)

	created, err := svc.parseCreate(body)
	if err != nil {
		t.Fatalf("parseCreate unexpected error: %v", err)
	}
	if created.Name != longName || created.TimeOfCourse != longTime {
		t.Errorf("parseCreate truncated text: name=%d time=%d chars", len(created.Name), len(created.TimeOfCourse))
	}

	update, err := svc.parseUpdate(body)
	if err != nil {
		t.Fatalf("parseUpdate unexpected error: %v", err)
	}
	if update.Name == nil || *update.Name != longName {
		t.Errorf("parseUpdate Name = %v, want %d chars", update.Name, len(longName))
	}
	if update.TimeOfCourse == nil || *update.TimeOfCourse != longTime {
		t.Errorf("parseUpdate TimeOfCourse = %v, want %d chars", update.TimeOfCourse, len(longTime))
	}
}

func TestParseCreate_InvalidName(t *testing.T) {
	svc, _ := newTestService(&mockCourseRepo{}, nil)

	bodies := []string{
		`{}`,
		`{"IndivCourse":""}`,
		`{"IndivCourse":"   "}`,
		`{"IndivCourse":123}`,
		`{"IndivCourse":null}`,
		`{"IndivCourse":"<script>x</script>"}`,
	}
	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			_, err := svc.parseCreate(fields(t, body))
			assertAPIErrorCode(t, err, model.ErrCodeInvalidCourseName,
				"Course name is required and must be a non-empty string.")
		})
	}
}

func TestParseUpdate_RecognisedKeysOnly(t *testing.T) {
	svc, _ := newTestService(&mockCourseRepo{}, nil)

	got, err := svc.parseUpdate(fields(t, `{"present":"3","criteria":80,"userId":99,"id":5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := repository.CourseUpdate{Present: intPtr(3), Criteria: intPtr(80)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}
}

func TestParseUpdate_AllFields(t *testing.T) {
	svc, _ := newTestService(&mockCourseRepo{}, nil)

	got, err := svc.parseUpdate(fields(t, `{
		"IndivCourse":"Physics II",
		"timeofcourse":null,
		"Totaldays":0,
		"present":1,
		"absent":2,
		"cancelled":3,
		"criteria":60,
		"days":"not-an-array"
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name := "Physics II"
	empty := ""
	days := model.EmptyDays()
	want := repository.CourseUpdate{
		Name:         &name,
		TimeOfCourse: &empty,
		TotalDays:    intPtr(0),
		Present:      intPtr(1),
		Absent:       intPtr(2),
		Cancelled:    intPtr(3),
		Criteria:     intPtr(60),
		Days:         &days,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}
}

func TestParseUpdate_InvalidValues(t *testing.T) {
	svc, _ := newTestService(&mockCourseRepo{}, nil)

	tests := []struct {
		body        string
		wantCode    string
		wantMessage string
	}{
		{`{"IndivCourse":""}`, model.ErrCodeInvalidCourseName, "Course name must be a non-empty string."},
		{`{"IndivCourse":false}`, model.ErrCodeInvalidCourseName, "Course name must be a non-empty string."},
		{`{"present":-1}`, model.ErrCodeInvalidField, "present must be a non-negative integer."},
		{`{"absent":"two"}`, model.ErrCodeInvalidField, "absent must be a non-negative integer."},
		{`{"Totaldays":null}`, model.ErrCodeInvalidField, "Totaldays must be a non-negative integer."},
		{`{"criteria":7.5}`, model.ErrCodeInvalidField, "criteria must be a non-negative integer."},
		{`{"timeofcourse":[1]}`, model.ErrCodeInvalidField, "timeofcourse must be a string."},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			_, err := svc.parseUpdate(fields(t, tt.body))
			assertAPIErrorCode(t, err, tt.wantCode, tt.wantMessage)
		})
	}
}
