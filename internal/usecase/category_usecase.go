package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"pos/internal/domain/model"
	repo "pos/internal/repository"

	"github.com/google/uuid"
)

type CategoryUsecase struct {
	categories repo.CategoryRepository
}

func NewCategoryUsecase(categories repo.CategoryRepository) *CategoryUsecase {
	return &CategoryUsecase{categories: categories}
}

func (u *CategoryUsecase) List(ctx context.Context, actor Actor, includeInactive bool) ([]model.Category, error) {
	out, err := u.categories.List(ctx, includeInactive && actor.Can(model.PermCategoriesUpdate))
	if err != nil {
		return nil, dbError(err)
	}
	return out, nil
}

func (u *CategoryUsecase) Get(ctx context.Context, id string) (model.Category, error) {
	c, err := u.categories.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Category{}, notFoundError("category not found")
	}
	if err != nil {
		return model.Category{}, dbError(err)
	}
	return c, nil
}

type CategoryInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

func (u *CategoryUsecase) Create(ctx context.Context, in CategoryInput) (model.Category, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return model.Category{}, validationError("name required")
	}
	if len(strings.TrimSpace(*in.Name)) > 100 {
		return model.Category{}, validationError("name too long")
	}

	now := time.Now().UTC()
	c := model.Category{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(*in.Name),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}

	created, err := u.categories.Create(ctx, c)
	if errors.Is(err, repo.ErrDuplicate) {
		return model.Category{}, conflictError("category name already exists")
	}
	if err != nil {
		return model.Category{}, dbError(err)
	}
	return created, nil
}

func (u *CategoryUsecase) Update(ctx context.Context, id string, in CategoryInput) (model.Category, error) {
	c, err := u.Get(ctx, id)
	if err != nil {
		return model.Category{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return model.Category{}, validationError("name required")
		}
		if len(name) > 100 {
			return model.Category{}, validationError("name too long")
		}
		c.Name = name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}

	err = u.categories.Update(ctx, c)
	if errors.Is(err, repo.ErrDuplicate) {
		return model.Category{}, conflictError("category name already exists")
	}
	if errors.Is(err, repo.ErrNotFound) {
		return model.Category{}, notFoundError("category not found")
	}
	if err != nil {
		return model.Category{}, dbError(err)
	}
	return u.Get(ctx, id)
}

// 商品が残っているカテゴリは消せない
func (u *CategoryUsecase) Delete(ctx context.Context, id string) error {
	n, err := u.categories.CountProducts(ctx, id)
	if err != nil {
		return dbError(err)
	}
	if n > 0 {
		return conflictError("category has products")
	}

	err = u.categories.Delete(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return notFoundError("category not found")
	}
	if err != nil {
		return dbError(err)
	}
	return nil
}
