package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"pos/internal/domain/model"
	"pos/internal/repository"
)

// 管理者がユーザーを編集するときの入力。nilは変更なし
type UpdateUserInput struct {
	Username *string
	Email    *string
	FullName *string
	Role     *model.Role
}

var (
	ErrUserNotFound = errors.New("user not found")
	// 自分のロールは変えられない
	ErrCannotChangeOwnRole = errors.New("cannot change your own role")
)

// 監査ログに残す項目（パスワードは含めない）
type userSnapshot struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	FullName string     `json:"full_name"`
	Role     model.Role `json:"role"`
}

func snapshotOf(u *model.User) string {
	b, _ := json.Marshal(userSnapshot{Username: u.Username, Email: u.Email, FullName: u.FullName, Role: u.Role})
	return string(b)
}

type UpdateUserUsecase struct {
	userRepo  repository.UserRepository
	auditRepo repository.AuditLogRepository
	validator UserValidator
	hasher    PasswordHasher
	clock     Clock
}

// DI
func NewUpdateUserUsecase(
	userRepo repository.UserRepository,
	auditRepo repository.AuditLogRepository,
	validator UserValidator,
	hasher PasswordHasher,
	clock Clock,
) *UpdateUserUsecase {
	return &UpdateUserUsecase{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		validator: validator,
		hasher:    hasher,
		clock:     clock,
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func (u *UpdateUserUsecase) load(ctx context.Context, userID string) (*model.User, error) {
	user, err := u.userRepo.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// ロールが変わったらtoken_versionを上げる（古いroleのトークンを使わせない）
func (u *UpdateUserUsecase) Update(ctx context.Context, actorID, userID string, in UpdateUserInput) (model.User, error) {
	in.Username = trimPtr(in.Username)
	in.Email = trimPtr(in.Email)
	in.FullName = trimPtr(in.FullName)

	if in.Role != nil && userID == actorID {
		return model.User{}, ErrCannotChangeOwnRole
	}

	user, err := u.load(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	if err := u.validator.ValidateUpdateUser(ctx, userID, in); err != nil {
		return model.User{}, err
	}

	before := snapshotOf(user)
	roleChanged := in.Role != nil && *in.Role != user.Role

	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.FullName != nil {
		user.FullName = *in.FullName
	}
	if in.Role != nil {
		user.Role = *in.Role
	}

	after := snapshotOf(user)
	if before == after {
		return *user, nil
	}

	user.UpdatedAt = u.clock.Now()
	if err := u.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, ErrUsernameAlreadyExists
		}
		return model.User{}, err
	}
	if roleChanged {
		if err := u.userRepo.IncrementTokenVersion(ctx, user.ID); err != nil {
			return model.User{}, err
		}
		user.TokenVersion++
	}

	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionUpdateUser,
		ResourceType: model.AuditResourceUser,
		ResourceID:   user.ID,
		BeforeJSON:   before,
		AfterJSON:    after,
		CreatedAt:    u.clock.Now(),
	}); err != nil {
		return model.User{}, err
	}

	return *user, nil
}

// パスワードを再設定し、発行済みトークンを失効させる
func (u *UpdateUserUsecase) ChangePassword(ctx context.Context, actorID, userID, password string) (model.User, error) {
	if err := u.validator.ValidatePassword(password); err != nil {
		return model.User{}, err
	}

	user, err := u.load(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	hashed, err := u.hasher.Hash(password)
	if err != nil {
		return model.User{}, err
	}

	user.PasswordHash = hashed
	user.UpdatedAt = u.clock.Now()
	if err := u.userRepo.Update(ctx, user); err != nil {
		return model.User{}, err
	}
	if err := u.userRepo.IncrementTokenVersion(ctx, user.ID); err != nil {
		return model.User{}, err
	}
	user.TokenVersion++

	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionChangePassword,
		ResourceType: model.AuditResourceUser,
		ResourceID:   user.ID,
		CreatedAt:    u.clock.Now(),
	}); err != nil {
		return model.User{}, err
	}

	return *user, nil
}
