package handler

import (
	"net/http"
	"time"

	"pos/internal/domain/model"
	"pos/internal/middleware"
	"pos/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// 同じキーの再送は最初の売上を返す
const HeaderIdempotencyKey = "X-Idempotency-Key"

type CreateSaleRequest struct {
	Items         []usecase.SaleLineInput `json:"items"`
	PaymentMethod string                  `json:"payment_method"`
	CustomerName  *string                 `json:"customer_name"`
	Discount      decimal.Decimal         `json:"discount"`
}

// /sales
type SaleHandler struct {
	uc  *usecase.SaleUsecase
	loc *time.Location
}

// DI
func NewSaleHandler(uc *usecase.SaleUsecase, loc *time.Location) *SaleHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SaleHandler{uc: uc, loc: loc}
}

// gはAuthJWTとTokenVersionGuardが掛かったグループ
func (h *SaleHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sales", h.create, middleware.RequirePermission(model.PermSalesCreate))
	g.GET("/sales", h.list, middleware.RequirePermission(model.PermSalesView))
	g.GET("/sales/today", h.today, middleware.RequirePermission(model.PermSalesView))
	g.GET("/sales/:id", h.detail, middleware.RequirePermission(model.PermSalesView))
	g.POST("/sales/:id/cancel", h.cancel, middleware.RequirePermission(model.PermSalesCancel))
}

func (h *SaleHandler) create(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateSaleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	sale, err := h.uc.CreateSale(c.Request().Context(), actor, usecase.CreateSaleInput{
		Items:          req.Items,
		PaymentMethod:  model.PaymentMethod(req.PaymentMethod),
		CustomerName:   req.CustomerName,
		Discount:       req.Discount,
		IdempotencyKey: c.Request().Header.Get(HeaderIdempotencyKey),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, sale)
}

func (h *SaleHandler) list(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	page, err := queryInt(c, "page", 1)
	if err != nil {
		return badRequest(c, err.Error())
	}
	limit, err := queryInt(c, "limit", 10)
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

	out, err := h.uc.ListSales(c.Request().Context(), actor, usecase.ListSalesInput{
		Page:          page,
		Limit:         limit,
		Status:        model.SaleStatus(c.QueryParam("status")),
		PaymentMethod: model.PaymentMethod(c.QueryParam("payment_method")),
		UserID:        queryString(c, "user_id"),
		From:          from,
		To:            to,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *SaleHandler) today(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	out, err := h.uc.GetTodaysSales(c.Request().Context(), actor)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *SaleHandler) detail(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	sale, err := h.uc.GetSale(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, sale)
}

func (h *SaleHandler) cancel(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	sale, err := h.uc.CancelSale(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, sale)
}
