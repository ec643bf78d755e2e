// Package calendar は出欠記録時にGoogleカレンダーへイベントを作成する通知を提供する。
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
	_ "time/tzdata"

	"golang.org/x/oauth2"

	"github.com/hitoshi/attendtrack/internal/metrics"
	"github.com/hitoshi/attendtrack/internal/model"
)

const (
	defaultEventsURL = "https://www.googleapis.com/calendar/v3/calendars/primary/events"
	defaultTimeZone  = "Asia/Kolkata"
	defaultTimeout   = 10 * time.Second

	eventDuration = time.Hour

	// エラーレスポンスのログに残す最大バイト数
	maxErrorBodyBytes = 4 << 10
)

// errSkipped は通知の前提条件を満たさず、イベントを作成しなかったことを表す。
var errSkipped = errors.New("calendar notification skipped")

// UserFinder は通知対象ユーザーの取得に使用するインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// Config はカレンダー通知の設定。
type Config struct {
	// OAuth2 はリフレッシュトークンからアクセストークンを得るための設定。
	// nilまたはClientSecretが空の場合は通知をスキップする。
	OAuth2 *oauth2.Config

	TimeZone string
	Timeout  time.Duration

	// テスト用にオーバーライド可能な項目
	EventsURL  string
	HTTPClient *http.Client
}

// Notifier はカレンダーイベントの作成を非同期に行う。
// 作成の成否は呼び出し元に返さず、ログとメトリクスにのみ記録する。
type Notifier struct {
	users   UserFinder
	config  Config
	loc     *time.Location
	metrics metrics.MetricsCollector
	now     func() time.Time

	wg sync.WaitGroup
}

// NewNotifier はNotifierを生成する。タイムゾーン名が不正な場合はエラーを返す。
func NewNotifier(users UserFinder, config Config, collector metrics.MetricsCollector) (*Notifier, error) {
	if config.TimeZone == "" {
		config.TimeZone = defaultTimeZone
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.EventsURL == "" {
		config.EventsURL = defaultEventsURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Timeout}
	}
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	loc, err := time.LoadLocation(config.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar time zone %q: %w", config.TimeZone, err)
	}

	return &Notifier{
		users:   users,
		config:  config,
		loc:     loc,
		metrics: collector,
		now:     time.Now,
	}, nil
}

// Notify はユーザーのカレンダーに出欠イベントを作成する処理を開始し、即座に返る。
// 処理はリクエストのコンテキストから切り離され、Timeoutで打ち切られる。
func (n *Notifier) Notify(userID int64, courseName string, status model.CourseStatus) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in calendar notification",
					slog.Int64("user_id", userID),
					slog.Any("panic", r),
				)
				n.metrics.RecordCalendarEvent(metrics.CalendarFailed)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), n.config.Timeout)
		defer cancel()

		start := time.Now()
		link, err := n.notify(ctx, userID, courseName, status)
		switch {
		case errors.Is(err, errSkipped):
			slog.Info("calendar notification skipped",
				slog.Int64("user_id", userID),
				slog.String("reason", err.Error()),
			)
			n.metrics.RecordCalendarEvent(metrics.CalendarSkipped)
		case err != nil:
			slog.Error("calendar event creation failed",
				slog.Int64("user_id", userID),
				slog.String("course", courseName),
				slog.String("error", err.Error()),
			)
			n.metrics.RecordCalendarEvent(metrics.CalendarFailed)
			n.metrics.RecordCalendarLatency(time.Since(start))
		default:
			slog.Info("calendar event created",
				slog.Int64("user_id", userID),
				slog.String("course", courseName),
				slog.String("status", string(status)),
				slog.String("html_link", link),
			)
			n.metrics.RecordCalendarEvent(metrics.CalendarCreated)
			n.metrics.RecordCalendarLatency(time.Since(start))
		}
	}()
}

// Wait は実行中の通知がすべて終わるか、ctxが終了するまで待つ。
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notify はユーザーを取得し、イベントを作成してそのリンクを返す。
func (n *Notifier) notify(ctx context.Context, userID int64, courseName string, status model.CourseStatus) (string, error) {
	if n.config.OAuth2 == nil || n.config.OAuth2.ClientID == "" || n.config.OAuth2.ClientSecret == "" {
		return "", fmt.Errorf("%w: google credentials are not configured", errSkipped)
	}

	user, err := n.users.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("%w: user not found", errSkipped)
	}
	if user.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", errSkipped)
	}

	accessToken, err := n.accessToken(ctx, user.RefreshToken)
	if err != nil {
		return "", err
	}

	return n.createEvent(ctx, accessToken, newEvent(courseName, status, n.now().In(n.loc), n.loc.String()))
}

// accessToken はリフレッシュトークンからアクセストークンを取得する。
func (n *Notifier) accessToken(ctx context.Context, refreshToken string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, n.config.HTTPClient)

	token, err := n.config.OAuth2.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}
	if token.AccessToken == "" {
		return "", errors.New("empty access token")
	}
	return token.AccessToken, nil
}

// createEvent はイベント作成APIを呼び出す。
func (n *Notifier) createEvent(ctx context.Context, accessToken string, ev event) (string, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.EventsURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create event request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.config.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("event request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("event creation failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var created struct {
		HTMLLink string `json:"htmlLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to parse event response: %w", err)
	}
	return created.HTMLLink, nil
}
