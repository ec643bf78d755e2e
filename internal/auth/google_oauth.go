package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleIssuer  = "https://accounts.google.com"
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

	// postMessageRedirectURL はクライアント側ポップアップで取得した認可コードを交換する際のredirect_uri。
	postMessageRedirectURL = "postmessage"
)

var (
	// ErrProviderNotConfigured はクライアントシークレットが未設定であることを表す。
	ErrProviderNotConfigured = errors.New("google oauth client secret is not configured")
	// ErrCodeExchangeFailed は認可コードの交換に失敗したことを表す。
	ErrCodeExchangeFailed = errors.New("google authorization code exchange failed")
	// ErrMissingIDToken はトークンレスポンスにid_tokenが含まれないことを表す。
	ErrMissingIDToken = errors.New("token response has no id_token")
	// ErrInvalidIDToken はIDトークンの検証に失敗したことを表す。
	ErrInvalidIDToken = errors.New("google id token verification failed")
)

// IDTokenVerifier はIDトークンを検証するインターフェース。
// *oidc.IDTokenVerifier が満たす。
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// GoogleIdentity はGoogleのIDトークンから得たユーザー情報を表す。
type GoogleIdentity struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
	RefreshToken  string // 同意画面でoffline accessが許可された場合のみ返る
}

// googleClaims はGoogleのIDトークンのうち利用するクレーム。
type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string

	// テスト用にオーバーライド可能な項目
	TokenURL   string
	Verifier   IDTokenVerifier
	HTTPClient *http.Client
}

// GoogleOAuthProvider は認可コードの交換とIDトークンの検証を行う。
type GoogleOAuthProvider struct {
	config   GoogleOAuthConfig
	oauth2   *oauth2.Config
	verifier IDTokenVerifier
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
// Verifierが未指定の場合はGoogleの公開鍵セットで検証するベリファイアを構築する。
// ctxは公開鍵の取得に使用されるため、アプリケーションの生存期間と同じものを渡す。
func NewGoogleOAuthProvider(ctx context.Context, config GoogleOAuthConfig) *GoogleOAuthProvider {
	verifier := config.Verifier
	if verifier == nil {
		keySet := oidc.NewRemoteKeySet(ctx, googleJWKSURL)
		verifier = oidc.NewVerifier(googleIssuer, keySet, &oidc.Config{ClientID: config.ClientID})
	}

	return &GoogleOAuthProvider{
		config:   config,
		oauth2:   NewOAuth2Config(config.ClientID, config.ClientSecret, config.TokenURL),
		verifier: verifier,
	}
}

// NewOAuth2Config はGoogleのトークンエンドポイントを使用するoauth2.Configを生成する。
// tokenURLが空の場合はGoogleの既定エンドポイントを使用する。
func NewOAuth2Config(clientID, clientSecret, tokenURL string) *oauth2.Config {
	endpoint := google.Endpoint
	if tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  postMessageRedirectURL,
		Endpoint:     endpoint,
	}
}

// Configured はクライアントシークレットが設定されている場合にtrueを返す。
func (p *GoogleOAuthProvider) Configured() bool {
	return p.config.ClientSecret != ""
}

// ExchangeCode は認可コードをトークンに交換し、IDトークンを検証してユーザー情報を返す。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*GoogleIdentity, error) {
	if !p.Configured() {
		return nil, ErrProviderNotConfigured
	}
	if p.config.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.config.HTTPClient)
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodeExchangeFailed, err)
	}

	rawIDToken, _ := token.Extra("id_token").(string)
	if rawIDToken == "" {
		return nil, ErrMissingIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}

	return &GoogleIdentity{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
		RefreshToken:  token.RefreshToken,
	}, nil
}

// compile-time interface check
var _ IdentityProvider = (*GoogleOAuthProvider)(nil)
