// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// カレンダー連携の結果
const (
	CalendarCreated = "created"
	CalendarFailed  = "failed"
	CalendarSkipped = "skipped"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、ハンドラー、カレンダー通知から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
	RecordLogin(result string)
	RecordCourseOperation(operation string)
	RecordCalendarEvent(outcome string)
	RecordCalendarLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests     *prometheus.CounterVec
	httpLatency      prometheus.Histogram
	logins           *prometheus.CounterVec
	courseOperations *prometheus.CounterVec
	calendarEvents   *prometheus.CounterVec
	calendarLatency  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendtrack_http_requests_total",
			Help: "メソッド・ステータスコード別のHTTPレスポンス数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendtrack_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendtrack_logins_total",
			Help: "結果別のGoogleログイン数",
		}, []string{"result"}),
		courseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendtrack_course_operations_total",
			Help: "操作別のコース変更数",
		}, []string{"operation"}),
		calendarEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "attendtrack_calendar_events_total",
			Help: "結果別のカレンダーイベント作成数",
		}, []string{"outcome"}),
		calendarLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendtrack_calendar_request_duration_seconds",
			Help:    "カレンダーイベント作成のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.logins,
		c.courseOperations,
		c.calendarEvents,
		c.calendarLatency,
	)

	return c
}

// RecordHTTPRequest はHTTPレスポンスのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordCourseOperation はコース変更操作を記録する。
func (c *Collector) RecordCourseOperation(operation string) {
	c.courseOperations.WithLabelValues(operation).Inc()
}

// RecordCalendarEvent はカレンダーイベント作成の結果を記録する。
func (c *Collector) RecordCalendarEvent(outcome string) {
	c.calendarEvents.WithLabelValues(outcome).Inc()
}

// RecordCalendarLatency はカレンダーAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordCalendarLatency(duration time.Duration) {
	c.calendarLatency.Observe(duration.Seconds())
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordHTTPRequest(string, int, time.Duration) {}
func (NopCollector) RecordLogin(string)                           {}
func (NopCollector) RecordCourseOperation(string)                 {}
func (NopCollector) RecordCalendarEvent(string)                   {}
func (NopCollector) RecordCalendarLatency(time.Duration)          {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
