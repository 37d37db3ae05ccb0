package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pos/internal/domain/model"
	repo "pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductUsecase struct {
	tx            repo.TransactionManager
	productRepo   repo.ProductRepository
	categoryRepo  repo.CategoryRepository
	inventoryRepo repo.InventoryRepository
	log           *slog.Logger
}

// DI
func NewProductUsecase(
	tx repo.TransactionManager,
	productRepo repo.ProductRepository,
	categoryRepo repo.CategoryRepository,
	inventoryRepo repo.InventoryRepository,
	log *slog.Logger,
) *ProductUsecase {
	if log == nil {
		log = slog.Default()
	}
	return &ProductUsecase{
		tx:            tx,
		productRepo:   productRepo,
		categoryRepo:  categoryRepo,
		inventoryRepo: inventoryRepo,
		log:           log,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page            int
	Limit           int
	Q               string
	CategoryID      *string
	LowStock        bool
	IncludeInactive bool
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListProducts(ctx context.Context, actor Actor, in ListProductsInput) (ProductListOutput, error) {
	if in.Page == 0 {
		in.Page = 1
	}
	if in.Limit == 0 {
		in.Limit = 20
	}
	if in.Page < 1 {
		return ProductListOutput{}, validationError("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, validationError("invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, validationError("q too long")
	}

	//非公開の商品は編集できる人だけ
	includeInactive := in.IncludeInactive && actor.Can(model.PermProductsUpdate)

	items, total, err := u.productRepo.List(ctx, repo.ProductListQuery{
		Page:            in.Page,
		Limit:           in.Limit,
		Q:               strings.TrimSpace(in.Q),
		CategoryID:      in.CategoryID,
		LowStock:        in.LowStock,
		IncludeInactive: includeInactive,
	})
	if err != nil {
		return ProductListOutput{}, dbError(err)
	}

	return ProductListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, actor Actor, productID string) (model.Product, error) {
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, notFoundError("product not found")
	}
	if err != nil {
		return model.Product{}, dbError(err)
	}
	if !p.IsActive && !actor.Can(model.PermProductsUpdate) {
		return model.Product{}, notFoundError("product not found")
	}
	return p, nil
}

type CreateProductInput struct {
	Name        string
	Description string
	Barcode     *string
	SKU         *string
	Price       decimal.Decimal
	Cost        decimal.Decimal
	Stock       int64
	MinStock    *int64
	ImageURL    string
	CategoryID  *string
	IsActive    *bool
}

func (u *ProductUsecase) CreateProduct(ctx context.Context, actor Actor, in CreateProductInput) (model.Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return model.Product{}, validationError("name required")
	}
	if in.Price.IsNegative() {
		return model.Product{}, validationError("price must be >= 0")
	}
	if in.Cost.IsNegative() {
		return model.Product{}, validationError("cost must be >= 0")
	}
	if in.Stock < 0 {
		return model.Product{}, validationError("stock must be >= 0")
	}
	minStock := model.DefaultMinStock
	if in.MinStock != nil {
		if *in.MinStock < 0 {
			return model.Product{}, validationError("min_stock must be >= 0")
		}
		minStock = *in.MinStock
	}
	categoryID := trimOptional(in.CategoryID)
	if err := u.checkCategory(ctx, categoryID); err != nil {
		return model.Product{}, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	now := time.Now().UTC()
	p := model.Product{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Barcode:     trimOptional(in.Barcode),
		SKU:         trimOptional(in.SKU),
		Price:       in.Price.Round(2),
		Cost:        in.Cost.Round(2),
		Stock:       in.Stock,
		MinStock:    minStock,
		ImageURL:    strings.TrimSpace(in.ImageURL),
		CategoryID:  categoryID,
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		created, err := r.Products().Create(ctx, p)
		if errors.Is(err, repo.ErrDuplicate) {
			return conflictError("barcode or sku already exists")
		}
		if err != nil {
			return dbError(err)
		}

		//初期在庫も履歴に残す
		if created.Stock > 0 {
			if err := r.Inventory().RecordMovement(ctx, model.StockMovement{
				ProductID:   created.ID,
				Reason:      model.StockMovementAdjustment,
				Delta:       created.Stock,
				ActorUserID: actor.UserID,
				Note:        "initial stock",
				CreatedAt:   now,
			}); err != nil {
				return dbError(err)
			}
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionCreateProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   created.ID,
			AfterJSON:    productSnapshot(created),
			CreatedAt:    now,
		}); err != nil {
			return dbError(err)
		}

		out = created
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return out, nil
}

// nilの項目は変更しない。stockはここでは変えない（UpdateStockを使う）
type UpdateProductInput struct {
	Name        *string
	Description *string
	Barcode     *string
	SKU         *string
	Price       *decimal.Decimal
	Cost        *decimal.Decimal
	MinStock    *int64
	ImageURL    *string
	CategoryID  *string
	IsActive    *bool
}

func (u *ProductUsecase) UpdateProduct(ctx context.Context, actor Actor, productID string, in UpdateProductInput) (model.Product, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return model.Product{}, validationError("name required")
	}
	if in.Price != nil && in.Price.IsNegative() {
		return model.Product{}, validationError("price must be >= 0")
	}
	if in.Cost != nil && in.Cost.IsNegative() {
		return model.Product{}, validationError("cost must be >= 0")
	}
	if in.MinStock != nil && *in.MinStock < 0 {
		return model.Product{}, validationError("min_stock must be >= 0")
	}
	if in.CategoryID != nil {
		if err := u.checkCategory(ctx, trimOptional(in.CategoryID)); err != nil {
			return model.Product{}, err
		}
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("product not found")
		}
		if err != nil {
			return dbError(err)
		}

		after := before
		if in.Name != nil {
			after.Name = strings.TrimSpace(*in.Name)
		}
		if in.Description != nil {
			after.Description = *in.Description
		}
		if in.Barcode != nil {
			after.Barcode = trimOptional(in.Barcode)
		}
		if in.SKU != nil {
			after.SKU = trimOptional(in.SKU)
		}
		if in.Price != nil {
			after.Price = in.Price.Round(2)
		}
		if in.Cost != nil {
			after.Cost = in.Cost.Round(2)
		}
		if in.MinStock != nil {
			after.MinStock = *in.MinStock
		}
		if in.ImageURL != nil {
			after.ImageURL = strings.TrimSpace(*in.ImageURL)
		}
		if in.CategoryID != nil {
			after.CategoryID = trimOptional(in.CategoryID)
		}
		if in.IsActive != nil {
			after.IsActive = *in.IsActive
		}

		err = r.Products().Update(ctx, after)
		if errors.Is(err, repo.ErrDuplicate) {
			return conflictError("barcode or sku already exists")
		}
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("product not found")
		}
		if err != nil {
			return dbError(err)
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionUpdateProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   before.ID,
			BeforeJSON:   productSnapshot(before),
			AfterJSON:    productSnapshot(after),
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			return dbError(err)
		}

		out, err = r.Products().FindByID(ctx, productID)
		if err != nil {
			return dbError(err)
		}
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	return out, nil
}

// 確定済みの売上に出てくる商品は消せない
func (u *ProductUsecase) DeleteProduct(ctx context.Context, actor Actor, productID string) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("product not found")
		}
		if err != nil {
			return dbError(err)
		}

		//先に行を更新してロックを取る。並行する売上の減算はこの後に待たされ、削除済みで失敗する
		err = r.Products().SoftDelete(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("product not found")
		}
		if err != nil {
			return dbError(err)
		}

		//確定済みの売上があればロールバック
		inUse, err := r.Sales().ExistsForProduct(ctx, productID, model.SaleStatusCompleted)
		if err != nil {
			return dbError(err)
		}
		if inUse {
			return conflictError("product is referenced by completed sales")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionDeleteProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   productSnapshot(before),
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			return dbError(err)
		}
		return nil
	})
}

// 棚卸しなどで在庫の現在値を直す。差分を履歴に残す
func (u *ProductUsecase) UpdateStock(ctx context.Context, actor Actor, productID string, newStock int64, note string) (model.Product, error) {
	if newStock < 0 {
		return model.Product{}, validationError("stock must be >= 0")
	}
	note = strings.TrimSpace(note)
	if len(note) > 255 {
		return model.Product{}, validationError("note too long")
	}

	var out model.Product
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		previous, err := r.Inventory().SetStock(ctx, productID, newStock)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("product not found")
		}
		if err != nil {
			return dbError(err)
		}

		now := time.Now().UTC()
		if delta := newStock - previous; delta != 0 {
			if err := r.Inventory().RecordMovement(ctx, model.StockMovement{
				ProductID:   productID,
				Reason:      model.StockMovementAdjustment,
				Delta:       delta,
				ActorUserID: actor.UserID,
				Note:        note,
				CreatedAt:   now,
			}); err != nil {
				return dbError(err)
			}
		}

		//監査ログを作成（在庫更新）
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, previous),
			AfterJSON:    fmt.Sprintf(`{"stock":%d}`, newStock),
			CreatedAt:    now,
		}); err != nil {
			return dbError(err)
		}

		out, err = r.Products().FindByID(ctx, productID)
		if err != nil {
			return dbError(err)
		}
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}

	u.log.InfoContext(ctx, "stock updated",
		slog.String("product_id", productID),
		slog.Int64("stock", newStock),
		slog.String("actor_user_id", actor.UserID),
	)
	return out, nil
}

func (u *ProductUsecase) ListMovements(ctx context.Context, productID string, limit int) ([]model.StockMovement, error) {
	if _, err := u.productRepo.FindByID(ctx, productID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, notFoundError("product not found")
		}
		return nil, dbError(err)
	}
	out, err := u.inventoryRepo.ListMovements(ctx, productID, limit)
	if err != nil {
		return nil, dbError(err)
	}
	return out, nil
}

func (u *ProductUsecase) checkCategory(ctx context.Context, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	_, err := u.categoryRepo.FindByID(ctx, *categoryID)
	if errors.Is(err, repo.ErrNotFound) {
		return validationError("category not found")
	}
	if err != nil {
		return dbError(err)
	}
	return nil
}

// 監査ログ用。stockは含めない
func productSnapshot(p model.Product) string {
	b, err := json.Marshal(map[string]any{
		"name":        p.Name,
		"barcode":     p.Barcode,
		"sku":         p.SKU,
		"price":       p.Price.StringFixed(2),
		"cost":        p.Cost.StringFixed(2),
		"min_stock":   p.MinStock,
		"category_id": p.CategoryID,
		"is_active":   p.IsActive,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}
