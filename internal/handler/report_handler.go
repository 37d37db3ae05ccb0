package handler

import (
	"net/http"
	"time"

	"pos/internal/domain/model"
	"pos/internal/middleware"
	"pos/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /reports
type ReportHandler struct {
	uc  *usecase.ReportUsecase
	loc *time.Location
}

func NewReportHandler(uc *usecase.ReportUsecase, loc *time.Location) *ReportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportHandler{uc: uc, loc: loc}
}

func (h *ReportHandler) RegisterRoutes(g *echo.Group) {
	reports := g.Group("/reports", middleware.RequirePermission(model.PermReportsViewOwn))
	reports.GET("/stats", h.stats)
	reports.GET("/charts", h.charts)
}

func (h *ReportHandler) stats(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	from, err := queryTime(c, "from", h.loc)
	if err != nil {
		return badRequest(c, err.Error())
	}
	to, err := queryTime(c, "to", h.loc)
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.SalesStats(c.Request().Context(), actor, usecase.StatsInput{
		From:   from,
		To:     to,
		UserID: queryString(c, "user_id"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ReportHandler) charts(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	days, err := queryInt(c, "days", 0)
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.ChartsData(c.Request().Context(), actor, days)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
