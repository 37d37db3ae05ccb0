package handler

import (
	"net/http"
	"time"

	"pos/internal/domain/model"
	"pos/internal/middleware"
	"pos/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /audit-logs（管理者向け）
type AuditHandler struct {
	uc  *usecase.AuditUsecase
	loc *time.Location
}

func NewAuditHandler(uc *usecase.AuditUsecase, loc *time.Location) *AuditHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AuditHandler{uc: uc, loc: loc}
}

func (h *AuditHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/audit-logs", h.List, middleware.RequirePermission(model.PermAuditView))
}

// GET /audit-logs?actor_user_id=&action=&resource_type=&resource_id=&from=&to=&page=&limit=
func (h *AuditHandler) List(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return badRequest(c, err.Error())
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return badRequest(c, err.Error())
	}
	from, err := queryTime(c, "from", h.loc)
	if err != nil {
		return badRequest(c, err.Error())
	}
	to, err := queryTime(c, "to", h.loc)
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.ListAuditLogs(c.Request().Context(), usecase.ListAuditLogsInput{
		ActorUserID:  queryString(c, "actor_user_id"),
		Action:       queryString(c, "action"),
		ResourceType: queryString(c, "resource_type"),
		ResourceID:   queryString(c, "resource_id"),
		From:         from,
		To:           to,
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
