package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

const testClientID = "test-client-id"

// testIDTokenSigner はテスト用のRSA鍵でIDトークンを署名する。
type testIDTokenSigner struct {
	key *rsa.PrivateKey
}

func newTestIDTokenSigner(t *testing.T) *testIDTokenSigner {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	return &testIDTokenSigner{key: key}
}

func (s *testIDTokenSigner) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func (s *testIDTokenSigner) verifier() IDTokenVerifier {
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&s.key.PublicKey}}
	return oidc.NewVerifier(googleIssuer, keySet, &oidc.Config{ClientID: testClientID})
}

func validIDTokenClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            googleIssuer,
		"aud":            testClientID,
		"sub":            "google-sub-12345",
		"email":          "user@gmail.com",
		"email_verified": true,
		"name":           "Google User",
		"picture":        "https://example.com/avatar.png",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

// newTokenServer はGoogleトークンエンドポイントを模したサーバーを立てる。
func newTokenServer(t *testing.T, response map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		if got := r.PostForm.Get("redirect_uri"); got != "postmessage" {
			t.Errorf("redirect_uri = %q, want %q", got, "postmessage")
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want %q", got, "authorization_code")
		}
		if r.PostForm.Get("code") == "expired-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	signer := newTestIDTokenSigner(t)
	srv := newTokenServer(t, map[string]any{
		"access_token":  "test-access-token",
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": "test-refresh-token",
		"id_token":      signer.sign(t, validIDTokenClaims()),
	})

	provider := NewGoogleOAuthProvider(context.Background(), GoogleOAuthConfig{
		ClientID:     testClientID,
		ClientSecret: "test-client-secret",
		TokenURL:     srv.URL,
		Verifier:     signer.verifier(),
	})

	identity, err := provider.ExchangeCode(context.Background(), "valid-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	want := GoogleIdentity{
		Subject:       "google-sub-12345",
		Email:         "user@gmail.com",
		Name:          "Google User",
		Picture:       "https://example.com/avatar.png",
		EmailVerified: true,
		RefreshToken:  "test-refresh-token",
	}
	if *identity != want {
		t.Errorf("identity = %+v, want %+v", *identity, want)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_NoRefreshToken(t *testing.T) {
	signer := newTestIDTokenSigner(t)
	srv := newTokenServer(t, map[string]any{
		"access_token": "test-access-token",
		"token_type":   "Bearer",
		"id_token":     signer.sign(t, validIDTokenClaims()),
	})

	provider := NewGoogleOAuthProvider(context.Background(), GoogleOAuthConfig{
		ClientID:     testClientID,
		ClientSecret: "test-client-secret",
		TokenURL:     srv.URL,
		Verifier:     signer.verifier(),
	})

	identity, err := provider.ExchangeCode(context.Background(), "valid-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if identity.RefreshToken != "" {
		t.Errorf("RefreshToken = %q, want empty", identity.RefreshToken)
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Errors(t *testing.T) {
	signer := newTestIDTokenSigner(t)

	wrongAudience := validIDTokenClaims()
	wrongAudience["aud"] = "someone-else"

	expired := validIDTokenClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	otherSigner := newTestIDTokenSigner(t)

	tests := []struct {
		name     string
		code     string
		response map[string]any
		want     error
	}{
		{
			name:     "トークン交換の失敗",
			code:     "expired-code",
			response: nil,
			want:     ErrCodeExchangeFailed,
		},
		{
			name:     "id_tokenなし",
			code:     "valid-code",
			response: map[string]any{"access_token": "at", "token_type": "Bearer"},
			want:     ErrMissingIDToken,
		},
		{
			name:     "audience不一致",
			code:     "valid-code",
			response: map[string]any{"access_token": "at", "token_type": "Bearer", "id_token": signer.sign(t, wrongAudience)},
			want:     ErrInvalidIDToken,
		},
		{
			name:     "期限切れのIDトークン",
			code:     "valid-code",
			response: map[string]any{"access_token": "at", "token_type": "Bearer", "id_token": signer.sign(t, expired)},
			want:     ErrInvalidIDToken,
		},
		{
			name:     "別の鍵で署名されたIDトークン",
			code:     "valid-code",
			response: map[string]any{"access_token": "at", "token_type": "Bearer", "id_token": otherSigner.sign(t, validIDTokenClaims())},
			want:     ErrInvalidIDToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTokenServer(t, tt.response)
			provider := NewGoogleOAuthProvider(context.Background(), GoogleOAuthConfig{
				ClientID:     testClientID,
				ClientSecret: "test-client-secret",
				TokenURL:     srv.URL,
				Verifier:     signer.verifier(),
			})

			_, err := provider.ExchangeCode(context.Background(), tt.code)
			if !errors.Is(err, tt.want) {
				t.Errorf("ExchangeCode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGoogleOAuthProvider_NotConfigured(t *testing.T) {
	provider := NewGoogleOAuthProvider(context.Background(), GoogleOAuthConfig{ClientID: testClientID})

	if provider.Configured() {
		t.Error("Configured() = true, want false")
	}
	if _, err := provider.ExchangeCode(context.Background(), "code"); !errors.Is(err, ErrProviderNotConfigured) {
		t.Errorf("ExchangeCode() error = %v, want ErrProviderNotConfigured", err)
	}
}

func TestNewOAuth2Config(t *testing.T) {
	cfg := NewOAuth2Config("id", "secret", "")
	if cfg.RedirectURL != "postmessage" {
		t.Errorf("RedirectURL = %q, want %q", cfg.RedirectURL, "postmessage")
	}
	if cfg.Endpoint.TokenURL != "https://oauth2.googleapis.com/token" {
		t.Errorf("TokenURL = %q", cfg.Endpoint.TokenURL)
	}

	overridden := NewOAuth2Config("id", "secret", "http://127.0.0.1/token")
	if overridden.Endpoint.TokenURL != "http://127.0.0.1/token" {
		t.Errorf("TokenURL = %q", overridden.Endpoint.TokenURL)
	}
}
