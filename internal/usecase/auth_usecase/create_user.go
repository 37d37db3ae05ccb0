package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"pos/internal/domain/model"
	"pos/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// 管理者がユーザーを作るときの入力
type CreateUserInput struct {
	Username string
	Email    string
	FullName string
	Password string
	Role     model.Role
}

type CreateUserOutput struct {
	User model.User `json:"user"`
}

var (
	// 入力が不正
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrFullNameRequired   = errors.New("full_name required")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidRole        = errors.New("invalid role")

	// 競合
	ErrUsernameAlreadyExists = errors.New("username or email already exists")
)

// 平文パスワードからハッシュへ。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// 入力パスワードと保存したハッシュを比べる約束
type PasswordVerifier interface {
	Verify(plain string, hashed string) bool
}

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type CreateUserUsecase struct {
	userRepo  repository.UserRepository
	validator UserValidator
	hasher    PasswordHasher
	idGen     IDGenerator
	clock     Clock
}

// DI
func NewCreateUserUsecase(
	userRepo repository.UserRepository,
	validator UserValidator,
	hasher PasswordHasher,
	idGen IDGenerator,
	clock Clock,
) *CreateUserUsecase {
	return &CreateUserUsecase{
		userRepo:  userRepo,
		validator: validator,
		hasher:    hasher,
		idGen:     idGen,
		clock:     clock,
	}
}

func (u *CreateUserUsecase) Execute(ctx context.Context, in CreateUserInput) (CreateUserOutput, error) {
	var out CreateUserOutput

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Role == "" {
		in.Role = model.RoleSeller
	}

	if err := u.validator.ValidateCreateUser(ctx, in); err != nil {
		return out, err
	}

	// パスワードをハッシュ化
	hashed, err := u.hasher.Hash(in.Password)
	if err != nil {
		return out, err
	}

	now := u.clock.Now()
	user := &model.User{
		ID:           u.idGen.NewID(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hashed,
		Role:         in.Role,
		TokenVersion: 0,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// DBへ保存（同時作成の重複はここで弾く）
	if err := u.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return out, ErrUsernameAlreadyExists
		}
		return out, err
	}

	out.User = *user
	return out, nil
}

// 起動時の管理者作成。同じユーザー名がいれば何もしない
func (u *CreateUserUsecase) EnsureAdmin(ctx context.Context, in CreateUserInput) (bool, error) {
	_, err := u.userRepo.FindByUsername(ctx, strings.TrimSpace(in.Username))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	in.Role = model.RoleAdmin
	if in.FullName == "" {
		in.FullName = "Administrator"
	}
	if _, err := u.Execute(ctx, in); err != nil {
		return false, err
	}
	return true, nil
}

// bcryptハッシュ化
type BcryptPasswordHasher struct {
	cost int
}

// DI
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{cost}
}

// bcryptでハッシュ化
func (h *BcryptPasswordHasher) Hash(plain string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}

	return string(hashedBytes), nil
}

// bcryptハッシュと平文を比較
type BcryptPasswordVerifier struct{}

// DI
func NewBcryptPasswordVerifier() *BcryptPasswordVerifier {
	return &BcryptPasswordVerifier{}
}

func (v *BcryptPasswordVerifier) Verify(plain string, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
