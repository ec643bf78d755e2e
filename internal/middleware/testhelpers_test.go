package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/attendtrack/internal/auth"
)

// --- モック定義 ---

type mockTokenVerifier struct {
	verifyFn func(token string) (*auth.SessionClaims, error)
}

func (m *mockTokenVerifier) Verify(token string) (*auth.SessionClaims, error) {
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return nil, auth.ErrInvalidOrExpiredToken
}

var _ TokenVerifier = (*mockTokenVerifier)(nil)

// acceptingVerifier は "valid-<id>" 形式のトークンのみを受け付ける。
func acceptingVerifier(tokens map[string]int64) *mockTokenVerifier {
	return &mockTokenVerifier{
		verifyFn: func(token string) (*auth.SessionClaims, error) {
			if id, ok := tokens[token]; ok {
				return &auth.SessionClaims{UserID: id, Email: "user@example.com"}, nil
			}
			return nil, auth.ErrInvalidOrExpiredToken
		},
	}
}

// decodeErrorBody はレスポンスボディの {"error": ...} を取り出す。
func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})
