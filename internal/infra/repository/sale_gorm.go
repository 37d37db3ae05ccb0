package repository

import (
	"context"
	"errors"
	"time"

	"pos/internal/domain/model"
	repo "pos/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type SaleGormRepository struct {
	db *gorm.DB
}

func NewSaleGormRepository(db *gorm.DB) *SaleGormRepository {
	return &SaleGormRepository{db: db}
}

// 明細は SaleItemRepository で入れる
func (r *SaleGormRepository) Create(ctx context.Context, sale model.Sale) error {
	sale.Items = nil
	if err := r.db.WithContext(ctx).Omit("Items").Create(&sale).Error; err != nil {
		if isDuplicate(err) {
			return repo.ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *SaleGormRepository) FindByID(ctx context.Context, saleID string) (model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Where("id = ?", saleID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Sale{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Sale{}, err
	}
	return s, nil
}

func (r *SaleGormRepository) FindByIdempotencyKey(ctx context.Context, key string) (model.Sale, bool, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&s).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Sale{}, false, nil
	}
	if err != nil {
		return model.Sale{}, false, err
	}
	return s, true, nil
}

// WHERE status = from で更新するので、二重取消は片方しか通らない
func (r *SaleGormRepository) CompareAndSetStatus(ctx context.Context, saleID string, from, to model.SaleStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Sale{}).
		Where("id = ? AND status = ?", saleID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *SaleGormRepository) List(ctx context.Context, f repo.SaleListFilter) ([]model.Sale, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 10
	}

	q := r.db.WithContext(ctx).Model(&model.Sale{})

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentMethod != "" {
		q = q.Where("payment_method = ?", f.PaymentMethod)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", f.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Sale{}, 0, err
	}

	var items []model.Sale
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("created_at desc").Order("sale_number desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Sale{}, 0, err
	}

	return items, total, nil
}

func (r *SaleGormRepository) ListByRange(ctx context.Context, from, to time.Time, status model.SaleStatus, userID *string) ([]model.Sale, error) {
	q := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC())
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}

	var out []model.Sale
	if err := q.Order("created_at desc").Order("sale_number desc").Find(&out).Error; err != nil {
		return []model.Sale{}, err
	}
	return out, nil
}

func (r *SaleGormRepository) ExistsForProduct(ctx context.Context, productID string, status model.SaleStatus) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.SaleItem{}).
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sale_items.product_id = ? AND sales.status = ?", productID, status).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TranslateErrorが効かないドライバでもpostgresの23505は拾う
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
