package server

import (
	"log/slog"

	"pos/internal/config"
	"pos/internal/repository"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// echoを組み立てる。起動はStartで
func New(cfg config.Config, userRepo repository.UserRepository, h Handlers, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				log.LogAttrs(c.Request().Context(), slog.LevelError, "request", slog.Group("http", attrs...), slog.String("error", v.Error.Error()))
				return nil
			}
			log.LogAttrs(c.Request().Context(), slog.LevelInfo, "request", slog.Group("http", attrs...))
			return nil
		},
	}))

	RegisterRoutes(e, cfg, userRepo, h)
	return e
}

// addrは ":8080" 形式
func Start(e *echo.Echo, addr string) error {
	return e.Start(addr)
}
