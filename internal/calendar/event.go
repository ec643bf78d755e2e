package calendar

import (
	"fmt"
	"time"

	"github.com/hitoshi/attendtrack/internal/model"
)

// event はカレンダーAPIに送信するイベント。
type event struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
	ColorID     string    `json:"colorId"`
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// newEvent はstartから1時間の出欠イベントを組み立てる。
func newEvent(courseName string, status model.CourseStatus, start time.Time, timeZone string) event {
	return event{
		Summary:     fmt.Sprintf("%s - %s", courseName, status),
		Description: fmt.Sprintf("Attendance marked as %s for %s", status, courseName),
		Start:       eventTime{DateTime: start.Format(time.RFC3339), TimeZone: timeZone},
		End:         eventTime{DateTime: start.Add(eventDuration).Format(time.RFC3339), TimeZone: timeZone},
		ColorID:     colorID(status),
	}
}

// colorID は出欠種別に対応するカレンダーの色IDを返す。
func colorID(status model.CourseStatus) string {
	switch status {
	case model.StatusPresent:
		return "10" // 緑
	case model.StatusAbsent:
		return "11" // 赤
	case model.StatusCancelled:
		return "5" // 黄
	default:
		return "0"
	}
}
