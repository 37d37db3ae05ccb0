package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pos/internal/domain/model"
	"pos/internal/repository"
)

type UserProfile struct {
	User        model.User         `json:"user"`
	Permissions []model.Permission `json:"permissions"`
}

type ForceLogoutResponse struct {
	UserID          string `json:"user_id"`
	NewTokenVersion int    `json:"new_token_version"`
}

type UserUsecase struct {
	users     repository.UserRepository
	auditRepo repository.AuditLogRepository
}

func NewUserUsecase(users repository.UserRepository, auditRepo repository.AuditLogRepository) *UserUsecase {
	return &UserUsecase{users: users, auditRepo: auditRepo}
}

func (u *UserUsecase) Me(ctx context.Context, userID string) (UserProfile, error) {
	if userID == "" {
		return UserProfile{}, NewAppError(KindUnauthorized, "unauthorized")
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return UserProfile{}, NewAppError(KindUnauthorized, "unauthorized")
	}
	if err != nil {
		return UserProfile{}, dbError(err)
	}
	if !user.IsActive {
		return UserProfile{}, NewAppError(KindForbidden, "user is inactive")
	}

	return UserProfile{
		User:        *user,
		Permissions: model.RolePermissions.For(user.Role),
	}, nil
}

func (u *UserUsecase) ListUsers(ctx context.Context) ([]model.User, error) {
	out, err := u.users.List(ctx)
	if err != nil {
		return nil, dbError(err)
	}
	return out, nil
}

func (u *UserUsecase) GetUser(ctx context.Context, userID string) (model.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, notFoundError("user not found")
	}
	if err != nil {
		return model.User{}, dbError(err)
	}
	return *user, nil
}

// 無効化したらtoken_versionを上げて発行済みトークンを失効させる
func (u *UserUsecase) SetActive(ctx context.Context, actor Actor, targetUserID string, active bool) (model.User, error) {
	if targetUserID == actor.UserID && !active {
		return model.User{}, validationError("cannot deactivate yourself")
	}

	user, err := u.users.FindByID(ctx, targetUserID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.User{}, notFoundError("user not found")
	}
	if err != nil {
		return model.User{}, dbError(err)
	}
	if user.IsActive == active {
		return *user, nil
	}

	before := user.IsActive
	user.IsActive = active
	user.UpdatedAt = time.Now().UTC()
	if err := u.users.Update(ctx, user); err != nil {
		return model.User{}, dbError(err)
	}
	if !active {
		if err := u.users.IncrementTokenVersion(ctx, user.ID); err != nil {
			return model.User{}, dbError(err)
		}
		user.TokenVersion++
	}

	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		Action:       model.AuditActionUpdateUserStatus,
		ResourceType: model.AuditResourceUser,
		ResourceID:   user.ID,
		BeforeJSON:   fmt.Sprintf(`{"is_active":%t}`, before),
		AfterJSON:    fmt.Sprintf(`{"is_active":%t}`, active),
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return model.User{}, dbError(err)
	}

	return *user, nil
}

func (u *UserUsecase) ForceLogout(ctx context.Context, targetUserID string) (ForceLogoutResponse, error) {
	if targetUserID == "" {
		return ForceLogoutResponse{}, validationError("invalid id")
	}

	err := u.users.IncrementTokenVersion(ctx, targetUserID)
	if errors.Is(err, repository.ErrNotFound) {
		return ForceLogoutResponse{}, notFoundError("user not found")
	}
	if err != nil {
		return ForceLogoutResponse{}, dbError(err)
	}

	//更新後を取得してnew_token_versionを返す
	user, err := u.users.FindByID(ctx, targetUserID)
	if err != nil {
		return ForceLogoutResponse{}, dbError(err)
	}

	return ForceLogoutResponse{
		UserID:          user.ID,
		NewTokenVersion: user.TokenVersion,
	}, nil
}
