package usecase_test

import (
	"context"
	"errors"
	"testing"

	"pos/internal/domain/model"
	repo "pos/internal/repository"
	"pos/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepoMock) IncrementTokenVersion(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Get(1).(int64), args.Error(2)
}

func TestUserUsecase_Me(t *testing.T) {
	ctx := context.Background()
	users := new(UserRepoMock)
	uc := usecase.NewUserUsecase(users, new(AuditRepoMock))

	users.On("FindByID", mock.Anything, "u1").Return(&model.User{ID: "u1", Role: model.RoleSeller, IsActive: true}, nil)
	users.On("FindByID", mock.Anything, "u2").Return(&model.User{ID: "u2", Role: model.RoleSeller, IsActive: false}, nil)
	users.On("FindByID", mock.Anything, "gone").Return(nil, repo.ErrNotFound)

	me, err := uc.Me(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", me.User.ID)
	assert.Contains(t, me.Permissions, model.PermSalesCreate)
	assert.NotContains(t, me.Permissions, model.PermSalesCancel)

	_, err = uc.Me(ctx, "u2")
	assert.Equal(t, usecase.KindForbidden, usecase.KindOf(err))

	_, err = uc.Me(ctx, "gone")
	assert.Equal(t, usecase.KindUnauthorized, usecase.KindOf(err))

	_, err = uc.Me(ctx, "")
	assert.Equal(t, usecase.KindUnauthorized, usecase.KindOf(err))
}

func TestUserUsecase_DeactivateBumpsTokenVersion(t *testing.T) {
	ctx := context.Background()
	users := new(UserRepoMock)
	audit := new(AuditRepoMock)
	uc := usecase.NewUserUsecase(users, audit)

	target := &model.User{ID: "u1", Role: model.RoleSeller, IsActive: true, TokenVersion: 2}
	users.On("FindByID", mock.Anything, "u1").Return(target, nil)
	users.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool { return !u.IsActive })).Return(nil)
	users.On("IncrementTokenVersion", mock.Anything, "u1").Return(nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionUpdateUserStatus &&
			l.ActorUserID == admin.UserID &&
			l.BeforeJSON == `{"is_active":true}` &&
			l.AfterJSON == `{"is_active":false}`
	})).Return(nil)

	out, err := uc.SetActive(ctx, admin, "u1", false)
	require.NoError(t, err)
	assert.False(t, out.IsActive)
	assert.Equal(t, 3, out.TokenVersion)

	users.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestUserUsecase_SetActiveEdgeCases(t *testing.T) {
	ctx := context.Background()
	users := new(UserRepoMock)
	audit := new(AuditRepoMock)
	uc := usecase.NewUserUsecase(users, audit)

	// 自分自身は無効化できない
	_, err := uc.SetActive(ctx, admin, admin.UserID, false)
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))

	users.On("FindByID", mock.Anything, "missing").Return(nil, repo.ErrNotFound)
	_, err = uc.SetActive(ctx, admin, "missing", true)
	assert.Equal(t, usecase.KindNotFound, usecase.KindOf(err))

	// 変化なしなら何も書かない
	users.On("FindByID", mock.Anything, "u1").Return(&model.User{ID: "u1", IsActive: true}, nil)
	_, err = uc.SetActive(ctx, admin, "u1", true)
	require.NoError(t, err)
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)

	users.On("FindByID", mock.Anything, "u3").Return(nil, errors.New("connection reset"))
	_, err = uc.SetActive(ctx, admin, "u3", true)
	ae, ok := usecase.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, usecase.KindInternal, ae.Kind)
	assert.Equal(t, "db error", ae.Message)
}

func TestUserUsecase_ForceLogout(t *testing.T) {
	ctx := context.Background()
	users := new(UserRepoMock)
	uc := usecase.NewUserUsecase(users, new(AuditRepoMock))

	users.On("IncrementTokenVersion", mock.Anything, "u1").Return(nil)
	users.On("FindByID", mock.Anything, "u1").Return(&model.User{ID: "u1", TokenVersion: 4}, nil)
	users.On("IncrementTokenVersion", mock.Anything, "missing").Return(repo.ErrNotFound)

	out, err := uc.ForceLogout(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, out.NewTokenVersion)

	_, err = uc.ForceLogout(ctx, "missing")
	assert.Equal(t, usecase.KindNotFound, usecase.KindOf(err))
}

func TestUserUsecase_GetUser(t *testing.T) {
	ctx := context.Background()
	users := new(UserRepoMock)
	uc := usecase.NewUserUsecase(users, new(AuditRepoMock))

	users.On("FindByID", mock.Anything, "u1").Return(&model.User{ID: "u1", Username: "ana"}, nil)
	users.On("FindByID", mock.Anything, "missing").Return(nil, repo.ErrNotFound)

	got, err := uc.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)

	_, err = uc.GetUser(ctx, "missing")
	assert.Equal(t, usecase.KindNotFound, usecase.KindOf(err))
}

func TestAuditUsecase_ListAuditLogs(t *testing.T) {
	ctx := context.Background()
	audit := new(AuditRepoMock)
	uc := usecase.NewAuditUsecase(audit)

	audit.On("List", mock.Anything, mock.MatchedBy(func(f repo.AuditLogFilter) bool {
		return f.Page == 1 && f.Limit == 50 &&
			f.Action != nil && *f.Action == model.AuditActionCancelSale &&
			f.ResourceType != nil && *f.ResourceType == model.AuditResourceSale
	})).Return([]model.AuditLog{{ID: 1, Action: model.AuditActionCancelSale}}, int64(1), nil)

	action, resource := "CANCEL_SALE", "sale"
	out, err := uc.ListAuditLogs(ctx, usecase.ListAuditLogsInput{Action: &action, ResourceType: &resource})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Len(t, out.Items, 1)
	audit.AssertExpectations(t)

	bad := "invoice"
	_, err = uc.ListAuditLogs(ctx, usecase.ListAuditLogsInput{ResourceType: &bad})
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))

	_, err = uc.ListAuditLogs(ctx, usecase.ListAuditLogsInput{Limit: 500})
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))
}
