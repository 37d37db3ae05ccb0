package repository

import (
	"context"

	"pos/internal/domain/model"
)

type CategoryRepository interface {
	List(ctx context.Context, includeInactive bool) ([]model.Category, error)
	FindByID(ctx context.Context, id string) (model.Category, error)
	Create(ctx context.Context, c model.Category) (model.Category, error)
	Update(ctx context.Context, c model.Category) error
	Delete(ctx context.Context, id string) error
	// カテゴリに属する商品数
	CountProducts(ctx context.Context, id string) (int64, error)
}
