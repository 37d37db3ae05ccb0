package handler

import (
	"net/http"

	"pos/internal/usecase"
	auth "pos/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

// /auth/login のリクエストボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthHandler struct {
	loginUC *auth.LoginUsecase // ログインusecase
	userUC  *usecase.UserUsecase
}

// DIコンストラクタ
func NewAuthHandler(loginUC *auth.LoginUsecase, userUC *usecase.UserUsecase) *AuthHandler {
	return &AuthHandler{loginUC: loginUC, userUC: userUC}
}

// loginは認証なし、meは認証済みグループに登録する
func (h *AuthHandler) RegisterRoutes(e *echo.Echo, authed *echo.Group) {
	e.POST("/auth/login", h.Login)
	authed.GET("/auth/me", h.Me)
}

// POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.loginUC.Execute(c.Request().Context(), auth.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

// GET /auth/me
func (h *AuthHandler) Me(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.userUC.Me(c.Request().Context(), actor.UserID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
