package handler

import (
	"net/http"

	"pos/internal/domain/model"
	"pos/internal/middleware"
	"pos/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type ProductCreateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Barcode     *string         `json:"barcode"`
	SKU         *string         `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	Stock       int64           `json:"stock"`
	MinStock    *int64          `json:"min_stock"`
	ImageURL    string          `json:"image_url"`
	CategoryID  *string         `json:"category_id"`
	IsActive    *bool           `json:"is_active"`
}

// 省略した項目は変更しない
type ProductUpdateRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Barcode     *string          `json:"barcode"`
	SKU         *string          `json:"sku"`
	Price       *decimal.Decimal `json:"price"`
	Cost        *decimal.Decimal `json:"cost"`
	MinStock    *int64           `json:"min_stock"`
	ImageURL    *string          `json:"image_url"`
	CategoryID  *string          `json:"category_id"`
	IsActive    *bool            `json:"is_active"`
}

// 在庫の棚卸し
type StockUpdateRequest struct {
	Stock *int64 `json:"stock"`
	Note  string `json:"note"`
}

// /products
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

func (h *ProductHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/products", h.list, middleware.RequirePermission(model.PermProductsView))
	g.GET("/products/:id", h.detail, middleware.RequirePermission(model.PermProductsView))
	g.POST("/products", h.create, middleware.RequirePermission(model.PermProductsCreate))
	g.PUT("/products/:id", h.update, middleware.RequirePermission(model.PermProductsUpdate))
	g.DELETE("/products/:id", h.delete, middleware.RequirePermission(model.PermProductsDelete))
	g.PUT("/products/:id/stock", h.updateStock, middleware.RequirePermission(model.PermProductsUpdate))
	g.GET("/products/:id/movements", h.movements, middleware.RequirePermission(model.PermProductsUpdate))
}

func (h *ProductHandler) list(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	// page（default 1）
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return badRequest(c, err.Error())
	}
	// limit（default 20）
	limit, err := queryInt(c, "limit", 20)
	if err != nil {
		return badRequest(c, err.Error())
	}
	lowStock, err := queryBool(c, "low_stock")
	if err != nil {
		return badRequest(c, err.Error())
	}
	includeInactive, err := queryBool(c, "include_inactive")
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.ListProducts(c.Request().Context(), actor, usecase.ListProductsInput{
		Page:            page,
		Limit:           limit,
		Q:               c.QueryParam("q"),
		CategoryID:      queryString(c, "category_id"),
		LowStock:        lowStock,
		IncludeInactive: includeInactive,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	p, err := h.uc.GetProduct(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) create(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req ProductCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	p, err := h.uc.CreateProduct(c.Request().Context(), actor, usecase.CreateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Barcode:     req.Barcode,
		SKU:         req.SKU,
		Price:       req.Price,
		Cost:        req.Cost,
		Stock:       req.Stock,
		MinStock:    req.MinStock,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, p)
}

func (h *ProductHandler) update(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req ProductUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	p, err := h.uc.UpdateProduct(c.Request().Context(), actor, c.Param("id"), usecase.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Barcode:     req.Barcode,
		SKU:         req.SKU,
		Price:       req.Price,
		Cost:        req.Cost,
		MinStock:    req.MinStock,
		ImageURL:    req.ImageURL,
		CategoryID:  req.CategoryID,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) delete(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.uc.DeleteProduct(c.Request().Context(), actor, c.Param("id")); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, SuccessResponse{Message: "deleted"})
}

func (h *ProductHandler) updateStock(c echo.Context) error {
	actor, ok := getActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req StockUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Stock == nil {
		return badRequest(c, "stock is required")
	}

	p, err := h.uc.UpdateStock(c.Request().Context(), actor, c.Param("id"), *req.Stock, req.Note)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) movements(c echo.Context) error {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		return badRequest(c, err.Error())
	}

	out, err := h.uc.ListMovements(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}
