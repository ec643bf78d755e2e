// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// Googleアカウント（sub）と1対1で対応する。
type User struct {
	ID           int64     `db:"id"`
	GoogleID     string    `db:"google_id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	Image        string    `db:"image"`
	Verified     bool      `db:"verified"`
	RefreshToken string    `db:"refresh_token"` // カレンダー連携専用。APIレスポンスには含めない
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// PublicUser はクライアントに返却するユーザー情報。
type PublicUser struct {
	ID       int64  `json:"id"`
	Email    string `json:"email_address"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Verified bool   `json:"verified"`
}

// Public はリフレッシュトークンを除いた公開用のユーザー情報を返す。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Image:    u.Image,
		Verified: u.Verified,
	}
}
