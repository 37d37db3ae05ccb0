package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pos/internal/config"
	"pos/internal/domain/model"
	"pos/internal/middleware"
	"pos/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

type userRepoMock struct{ mock.Mock }

func (m *userRepoMock) Create(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *userRepoMock) FindByID(ctx context.Context, id string) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *userRepoMock) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *userRepoMock) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]model.User)
	return users, args.Error(1)
}

func (m *userRepoMock) Update(ctx context.Context, user *model.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *userRepoMock) IncrementTokenVersion(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

var _ repository.UserRepository = (*userRepoMock)(nil)

func mustMakeJWT(t *testing.T, secret string, sub any, role string, tv int, signingMethod jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"tv":   tv,
		"iat":  1,
		"exp":  9999999999,
	}

	s, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func runRequest(t *testing.T, e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func ok(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(string)
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	tv, _ := c.Get(middleware.CtxTokenVersionKey).(int)
	return c.JSON(http.StatusOK, mwOKResponse{UserID: userID, Role: role, TokenVersion: tv})
}

func TestAuthJWT_Rejects(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "bad scheme", header: "Token abc.def.ghi"},
		{name: "empty token", header: "Bearer  "},
		{name: "bad signature", header: "Bearer " + mustMakeJWT(t, "wrong-secret", "u1", "SELLER", 0, jwt.SigningMethodHS256)},
		{name: "wrong alg", header: "Bearer " + mustMakeJWT(t, cfg.JWTSecret, "u1", "SELLER", 0, jwt.SigningMethodHS512)},
		{name: "numeric sub", header: "Bearer " + mustMakeJWT(t, cfg.JWTSecret, 1, "SELLER", 0, jwt.SigningMethodHS256)},
		{name: "missing role", header: "Bearer " + mustMakeJWT(t, cfg.JWTSecret, "u1", "", 0, jwt.SigningMethodHS256)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/protected", ok, middleware.AuthJWT(cfg))

			rec := runRequest(t, e, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", decodeError(t, rec).Error)
		})
	}
}

func TestAuthJWT_SetsContext(t *testing.T) {
	e := echo.New()
	cfg := config.Config{JWTSecret: "test-secret"}
	raw := mustMakeJWT(t, cfg.JWTSecret, "user-123", "SELLER", 7, jwt.SigningMethodHS256)

	e.GET("/protected", ok, middleware.AuthJWT(cfg))

	rec := runRequest(t, e, "Bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	assert.Equal(t, "user-123", body.UserID)
	assert.Equal(t, "SELLER", body.Role)
	assert.Equal(t, 7, body.TokenVersion)
}

func TestTokenVersionGuard_MissingContext(t *testing.T) {
	e := echo.New()
	userRepo := new(userRepoMock)
	e.GET("/protected", ok, middleware.TokenVersionGuard(userRepo))

	rec := runRequest(t, e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestTokenVersionGuard(t *testing.T) {
	cfg := config.Config{JWTSecret: "test-secret"}

	tests := []struct {
		name     string
		user     *model.User
		err      error
		wantCode int
		wantRole string
	}{
		{
			name:     "version matches",
			user:     &model.User{ID: "u1", Role: model.RoleSeller, TokenVersion: 5, IsActive: true},
			wantCode: http.StatusOK,
			wantRole: "SELLER",
		},
		{
			name:     "role from database wins",
			user:     &model.User{ID: "u1", Role: model.RoleAdmin, TokenVersion: 5, IsActive: true},
			wantCode: http.StatusOK,
			wantRole: "ADMIN",
		},
		{
			name:     "version mismatch",
			user:     &model.User{ID: "u1", Role: model.RoleSeller, TokenVersion: 6, IsActive: true},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "inactive user",
			user:     &model.User{ID: "u1", Role: model.RoleSeller, TokenVersion: 5, IsActive: false},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "user gone",
			err:      repository.ErrNotFound,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "db error",
			err:      errors.New("boom"),
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			userRepo := new(userRepoMock)
			userRepo.On("FindByID", mock.Anything, "u1").Return(tt.user, tt.err).Once()

			raw := mustMakeJWT(t, cfg.JWTSecret, "u1", "SELLER", 5, jwt.SigningMethodHS256)
			e.GET("/protected", ok, middleware.AuthJWT(cfg), middleware.TokenVersionGuard(userRepo))

			rec := runRequest(t, e, "Bearer "+raw)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				var body mwOKResponse
				_ = json.NewDecoder(rec.Body).Decode(&body)
				assert.Equal(t, tt.wantRole, body.Role)
			}
			userRepo.AssertExpectations(t)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		perm     model.Permission
		wantCode int
	}{
		{name: "seller can sell", role: "SELLER", perm: model.PermSalesCreate, wantCode: http.StatusOK},
		{name: "seller cannot cancel", role: "SELLER", perm: model.PermSalesCancel, wantCode: http.StatusForbidden},
		{name: "admin can cancel", role: "ADMIN", perm: model.PermSalesCancel, wantCode: http.StatusOK},
		{name: "unknown role", role: "GUEST", perm: model.PermProductsView, wantCode: http.StatusForbidden},
		{name: "no role", role: "", perm: model.PermProductsView, wantCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			setRole := func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					if tt.role != "" {
						c.Set(middleware.CtxUserRoleKey, tt.role)
					}
					return next(c)
				}
			}
			e.GET("/protected", ok, setRole, middleware.RequirePermission(tt.perm))

			rec := runRequest(t, e, "")
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
