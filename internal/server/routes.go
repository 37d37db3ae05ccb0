package server

import (
	"net/http"

	"pos/internal/config"
	"pos/internal/handler"
	"pos/internal/middleware"
	"pos/internal/repository"

	"github.com/labstack/echo/v4"
)

// ルーティングに必要なもの
type Handlers struct {
	Auth     *handler.AuthHandler
	Sale     *handler.SaleHandler
	Report   *handler.ReportHandler
	Product  *handler.ProductHandler
	Category *handler.CategoryHandler
	User     *handler.UserHandler
	Audit    *handler.AuditHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, handler.SuccessResponse{Message: "ok"})
	})

	// ログイン以外は全部「JWT必須 + token_version一致」
	authed := e.Group("",
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
	)

	h.Auth.RegisterRoutes(e, authed)
	h.Sale.RegisterRoutes(authed)
	h.Report.RegisterRoutes(authed)
	h.Product.RegisterRoutes(authed)
	h.Category.RegisterRoutes(authed)
	h.User.RegisterRoutes(authed)
	h.Audit.RegisterRoutes(authed)
}
