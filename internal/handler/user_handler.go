package handler

import (
	"net/http"

	"pos/internal/domain/model"
	"pos/internal/middleware"
	"pos/internal/usecase"
	auth "pos/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// 送られた項目だけ変更
type updateUserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

type userStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// /users（管理者向け）
type UserHandler struct {
	createUC *auth.CreateUserUsecase
	updateUC *auth.UpdateUserUsecase
	uc       *usecase.UserUsecase
}

func NewUserHandler(createUC *auth.CreateUserUsecase, updateUC *auth.UpdateUserUsecase, uc *usecase.UserUsecase) *UserHandler {
	return &UserHandler{createUC: createUC, updateUC: updateUC, uc: uc}
}

func (h *UserHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/users", h.List, middleware.RequirePermission(model.PermUsersView))
	g.POST("/users", h.Create, middleware.RequirePermission(model.PermUsersCreate))
	g.GET("/users/:id", h.Get, middleware.RequirePermission(model.PermUsersView))
	g.PUT("/users/:id", h.Update, middleware.RequirePermission(model.PermUsersUpdate))
	g.PUT("/users/:id/password", h.ChangePassword, middleware.RequirePermission(model.PermUsersUpdate))
	g.PATCH("/users/:id/status", h.SetStatus, middleware.RequirePermission(model.PermUsersUpdate))
	g.POST("/users/:id/force-logout", h.ForceLogout, middleware.RequirePermission(model.PermUsersUpdate))
}

func (h *UserHandler) List(c echo.Context) error {
	out, err := h.uc.ListUsers(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.createUC.Execute(c.Request().Context(), auth.CreateUserInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Role:     model.Role(req.Role),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *UserHandler) Get(c echo.Context) error {
	out, err := h.uc.GetUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UserHandler) Update(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	in := auth.UpdateUserInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		in.Role = &role
	}

	out, err := h.updateUC.Update(c.Request().Context(), actor.UserID, c.Param("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 再設定後は対象ユーザーのトークンが失効する
func (h *UserHandler) ChangePassword(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.updateUC.ChangePassword(c.Request().Context(), actor.UserID, c.Param("id"), req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// 無効化すると発行済みトークンも使えなくなる
func (h *UserHandler) SetStatus(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req userStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.IsActive == nil {
		return badRequest(c, "is_active is required")
	}

	out, err := h.uc.SetActive(c.Request().Context(), actor, c.Param("id"), *req.IsActive)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UserHandler) ForceLogout(c echo.Context) error {
	res, err := h.uc.ForceLogout(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
