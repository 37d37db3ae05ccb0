package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"pos/internal/domain/model"
	"pos/internal/middleware"
	"pos/internal/usecase"
	auth "pos/internal/usecase/auth_usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
	// VALIDATION_ERROR / NOT_FOUND / INSUFFICIENT_STOCK ...
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// 在庫不足のときの詳細
type insufficientStockDetails struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Requested   int64  `json:"requested"`
	Available   int64  `json:"available"`
}

var kindStatus = map[usecase.ErrorKind]int{
	usecase.KindValidation:        http.StatusBadRequest,
	usecase.KindNotFound:          http.StatusNotFound,
	usecase.KindInsufficientStock: http.StatusConflict,
	usecase.KindConflict:          http.StatusConflict,
	usecase.KindUnauthorized:      http.StatusUnauthorized,
	usecase.KindForbidden:         http.StatusForbidden,
	usecase.KindInternal:          http.StatusInternalServerError,
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	//在庫不足は足りない商品を返す
	var ise *usecase.InsufficientStockError
	if errors.As(err, &ise) {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error: ise.Error(),
			Code:  string(usecase.KindInsufficientStock),
			Details: insufficientStockDetails{
				ProductID:   ise.ProductID,
				ProductName: ise.ProductName,
				Requested:   ise.Requested,
				Available:   ise.Available,
			},
		})
	}

	if ae, ok := usecase.AsAppError(err); ok {
		status, ok := kindStatus[ae.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		if status == http.StatusInternalServerError {
			return internalError(c, err)
		}
		return c.JSON(status, ErrorResponse{Error: ae.Message, Code: string(ae.Kind)})
	}

	//auth usecaseのエラー
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserInactive):
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials", Code: string(usecase.KindUnauthorized)})
	case errors.Is(err, auth.ErrInvalidUsername),
		errors.Is(err, auth.ErrInvalidEmailFormat),
		errors.Is(err, auth.ErrFullNameRequired),
		errors.Is(err, auth.ErrPasswordTooShort),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidRole),
		errors.Is(err, auth.ErrCannotChangeOwnRole):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: string(usecase.KindValidation)})
	case errors.Is(err, auth.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: string(usecase.KindNotFound)})
	case errors.Is(err, auth.ErrUsernameAlreadyExists):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: string(usecase.KindConflict)})
	}

	return internalError(c, err)
}

// 500。原因はログにだけ出す
func internalError(c echo.Context, err error) error {
	slog.ErrorContext(c.Request().Context(), "request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err,
	)
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: string(usecase.KindInternal)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: string(usecase.KindValidation)})
}

// AuthJWTとTokenVersionGuardが入れた値からActorを作る
func getActor(c echo.Context) (usecase.Actor, bool) {
	userID, ok := c.Get(middleware.CtxUserIDKey).(string)
	if !ok || userID == "" {
		return usecase.Actor{}, false
	}
	role, ok := c.Get(middleware.CtxUserRoleKey).(string)
	if !ok || role == "" {
		return usecase.Actor{}, false
	}
	return usecase.Actor{UserID: userID, Role: model.Role(role)}, true
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: string(usecase.KindUnauthorized)})
}
