package validator

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"

	"pos/internal/repository"
	auth "pos/internal/usecase/auth_usecase"
)

// 入力が不正
var ErrInvalidInput = errors.New("invalid input")

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,50}$`)

// パスワード最低文字数
const minPasswordLen = 8

type userValidator struct {
	users repository.UserRepository
}

// Usecaseは interface を依存注入
func NewUserValidator(users repository.UserRepository) auth.UserValidator {
	return &userValidator{users: users}
}

// ログインの入力を検証
func (v *userValidator) ValidateLogin(ctx context.Context, username string, password string) error {
	// 必須チェック
	if strings.TrimSpace(username) == "" || password == "" {
		return ErrInvalidInput
	}
	return nil
}

// ユーザー作成の入力を検証
func (v *userValidator) ValidateCreateUser(ctx context.Context, in auth.CreateUserInput) error {
	if !usernamePattern.MatchString(in.Username) {
		return auth.ErrInvalidUsername
	}

	// email形式
	if !isEmailLike(in.Email) {
		return auth.ErrInvalidEmailFormat
	}

	if in.FullName == "" || len(in.FullName) > 100 {
		return auth.ErrFullNameRequired
	}

	if err := v.ValidatePassword(in.Password); err != nil {
		return err
	}

	if !in.Role.Valid() {
		return auth.ErrInvalidRole
	}

	// username重複チェック（DBが必要）
	u, err := v.users.FindByUsername(ctx, in.Username)
	if err == nil && u != nil {
		return auth.ErrUsernameAlreadyExists
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	return nil
}

// ユーザー更新の入力を検証（nilの項目は変更なし）
func (v *userValidator) ValidateUpdateUser(ctx context.Context, userID string, in auth.UpdateUserInput) error {
	if in.Username != nil && !usernamePattern.MatchString(*in.Username) {
		return auth.ErrInvalidUsername
	}
	if in.Email != nil && !isEmailLike(*in.Email) {
		return auth.ErrInvalidEmailFormat
	}
	if in.FullName != nil && (*in.FullName == "" || len(*in.FullName) > 100) {
		return auth.ErrFullNameRequired
	}
	if in.Role != nil && !in.Role.Valid() {
		return auth.ErrInvalidRole
	}

	// 自分以外に同じusernameがいればNG
	if in.Username != nil {
		u, err := v.users.FindByUsername(ctx, *in.Username)
		if err == nil && u != nil && u.ID != userID {
			return auth.ErrUsernameAlreadyExists
		}
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}

	return nil
}

// パスワードの長さと弱さ
func (v *userValidator) ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return auth.ErrPasswordTooShort
	}
	if isWeakPassword(password) {
		return auth.ErrWeakPassword
	}
	return nil
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	if s == "" || len(s) > 100 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// よくある弱いパスワード
func isWeakPassword(password string) bool {
	normalized := strings.ToLower(strings.TrimSpace(password))

	weak := map[string]struct{}{
		"password":     {},
		"password123":  {},
		"123456789012": {},
		"1234567890":   {},
		"12345678":     {},
		"qwertyuiop":   {},
		"admin123":     {},
	}

	_, ok := weak[normalized]
	return ok
}
