// Package auth はGoogle OAuthによるログインとセッショントークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/attendtrack/internal/model"
	"github.com/hitoshi/attendtrack/internal/repository"
)

// IdentityProvider は認可コードからユーザー情報を得る外部IdPのインターフェース。
type IdentityProvider interface {
	// Configured はコード交換に必要な資格情報が揃っている場合にtrueを返す。
	Configured() bool
	// ExchangeCode は認可コードを交換し、検証済みのユーザー情報を返す。
	ExchangeCode(ctx context.Context, code string) (*GoogleIdentity, error)
}

// Session はログイン成功時に発行されるセッションを表す。
type Session struct {
	Token     string
	User      *model.User
	ExpiresAt time.Time
}

// Service はログインとログイン中ユーザーの取得を提供する。
type Service struct {
	provider IdentityProvider
	users    repository.UserRepository
	tokens   *TokenService
}

// NewService はServiceを生成する。
func NewService(provider IdentityProvider, users repository.UserRepository, tokens *TokenService) *Service {
	return &Service{provider: provider, users: users, tokens: tokens}
}

// ExchangeCodeForSession は認可コードを交換し、ユーザーを作成または更新してセッションを発行する。
// クライアント起因の失敗は*model.APIErrorを返し、ストレージ障害等はそのままエラーを返す。
func (s *Service) ExchangeCodeForSession(ctx context.Context, code string) (*Session, error) {
	if code == "" {
		return nil, model.NewMissingCodeError()
	}
	if !s.provider.Configured() {
		slog.Error("google oauth client secret is not configured")
		return nil, model.NewServerMisconfiguredError()
	}

	identity, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, mapProviderError(err)
	}
	if identity.Subject == "" || identity.Email == "" {
		return nil, model.NewIncompleteIdentityError()
	}

	user, err := s.upsertUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &Session{
		Token:     token,
		User:      user,
		ExpiresAt: time.Now().Add(s.tokens.TTL()),
	}, nil
}

// GetCurrentUser は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (s *Service) GetCurrentUser(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// upsertUser はgoogle_idでユーザーを特定し、未登録なら作成、登録済みならプロフィールを更新する。
// 初回ログインが並行して一意制約に抵触した場合は更新に切り替える。
func (s *Service) upsertUser(ctx context.Context, identity *GoogleIdentity) (*model.User, error) {
	user, err := s.users.FindByGoogleID(ctx, identity.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google id: %w", err)
	}

	if user == nil {
		user = &model.User{
			GoogleID:     identity.Subject,
			Email:        identity.Email,
			Name:         identity.Name,
			Image:        identity.Picture,
			Verified:     identity.EmailVerified,
			RefreshToken: identity.RefreshToken,
		}
		err := s.users.Create(ctx, user)
		if err == nil {
			slog.Info("new user created",
				slog.Int64("user_id", user.ID),
				slog.String("email", user.Email),
			)
			return user, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		user, err = s.users.FindByGoogleID(ctx, identity.Subject)
		if err != nil {
			return nil, fmt.Errorf("failed to find user by google id: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("user with google id %q vanished after duplicate insert", identity.Subject)
		}
	}

	user.Email = identity.Email
	user.Name = identity.Name
	user.Image = identity.Picture
	user.Verified = identity.EmailVerified
	// Googleは再同意時にしかリフレッシュトークンを返さないため、無い場合は既存値を保持する
	if identity.RefreshToken != "" {
		user.RefreshToken = identity.RefreshToken
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	slog.Info("existing user logged in", slog.Int64("user_id", user.ID))
	return user, nil
}

// mapProviderError はIdPのエラーをクライアント向けのAPIErrorに変換する。
func mapProviderError(err error) error {
	switch {
	case errors.Is(err, ErrProviderNotConfigured):
		return model.NewServerMisconfiguredError()
	case errors.Is(err, ErrMissingIDToken):
		slog.Warn("google token response has no id_token")
		return model.NewTokenExchangeFailedError()
	case errors.Is(err, ErrInvalidIDToken):
		slog.Warn("google id token rejected", slog.String("error", err.Error()))
		return model.NewInvalidIdentityTokenError()
	default:
		slog.Warn("google code exchange failed", slog.String("error", err.Error()))
		return model.NewIdentityProviderError()
	}
}
