package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/attendtrack/internal/auth"
	"github.com/hitoshi/attendtrack/internal/metrics"
	"github.com/hitoshi/attendtrack/internal/middleware"
	"github.com/hitoshi/attendtrack/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	ExchangeCodeForSession(ctx context.Context, code string) (*auth.Session, error)
	GetCurrentUser(ctx context.Context, userID int64) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はGoogleログインとセッション関連のHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	config    AuthHandlerConfig
	collector metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, collector metrics.MetricsCollector) *AuthHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &AuthHandler{
		service:   service,
		config:    config,
		collector: collector,
	}
}

// googleLoginRequest はGoogleログインリクエストのボディ。
type googleLoginRequest struct {
	Code string `json:"code"`
}

// GoogleLogin はクライアントから受け取った認可コードを交換し、セッションCookieを発行する。
// POST /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if r.Body != nil {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			h.collector.RecordLogin(metrics.LoginFailure)
			middleware.WriteAPIError(w, model.NewInvalidRequestError())
			return
		}
	}

	session, err := h.service.ExchangeCodeForSession(r.Context(), req.Code)
	if err != nil {
		h.collector.RecordLogin(metrics.LoginFailure)
		slog.Warn("google login failed", slog.String("error", err.Error()))
		middleware.WriteError(w, r, err)
		return
	}
	h.collector.RecordLogin(metrics.LoginSuccess)

	// クロスサイトのクライアントから送信されるため SameSite=None + Secure が必須
	http.SetCookie(w, h.sessionCookie(session.Token, h.config.SessionMaxAge))

	public := session.User.Public()
	writeJSON(w, http.StatusOK, userResponse{OK: true, User: &public})
}

// Me は現在のログインユーザー情報を返す。
// トークンが無い、無効、またはユーザーが存在しない場合は {ok:false} を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, userResponse{OK: false})
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), identity.UserID)
	if err != nil {
		slog.Error("failed to get current user",
			slog.Int64("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, userResponse{OK: false})
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, userResponse{OK: false})
		return
	}

	public := user.Public()
	writeJSON(w, http.StatusOK, userResponse{OK: true, User: &public})
}

// Logout はセッションCookieをクリアする。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	writeOK(w)
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}
