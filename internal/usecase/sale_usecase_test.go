package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pos/internal/domain/model"
	"pos/internal/infra/db/dbtest"
	infra "pos/internal/infra/repository"
	repo "pos/internal/repository"
	"pos/internal/usecase"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	seller = usecase.Actor{UserID: "seller-1", Role: model.RoleSeller}
	admin  = usecase.Actor{UserID: "admin-1", Role: model.RoleAdmin}
)

type engine struct {
	db    *gorm.DB
	sales *usecase.SaleUsecase
	cache *countingCache
}

// Invalidateの回数だけ数える
type countingCache struct {
	usecase.NoopReportCache
	mu          sync.Mutex
	invalidated int
}

func (c *countingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	return nil
}

func newEngine(t *testing.T, now func() time.Time) engine {
	t.Helper()
	gdb := dbtest.Open(t)
	cache := &countingCache{}
	uc := usecase.NewSaleUsecase(
		infra.NewTxManagerGorm(gdb),
		infra.NewSaleGormRepository(gdb),
		infra.NewSaleItemGormRepository(gdb),
		infra.NewSequenceGormRepository(gdb),
		cache,
		usecase.SaleConfig{TaxRate: decimal.RequireFromString("0.21"), Location: time.UTC, Now: now},
		nil,
	)
	require.NoError(t, uc.EnsureSaleSequence(context.Background()))
	return engine{db: gdb, sales: uc, cache: cache}
}

func (e engine) product(t *testing.T, name, price string, stock int64) model.Product {
	t.Helper()
	p, err := infra.NewProductGormRepository(e.db).Create(context.Background(), model.Product{
		ID:       uuid.NewString(),
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		MinStock: model.DefaultMinStock,
		IsActive: true,
	})
	require.NoError(t, err)
	return p
}

func (e engine) stock(t *testing.T, id string) int64 {
	t.Helper()
	var p model.Product
	require.NoError(t, e.db.Unscoped().Where("id = ?", id).First(&p).Error)
	return p.Stock
}

func (e engine) countSales(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.Sale{}).Count(&n).Error)
	return n
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestCreateSale_ComputesTotalsAndDecrementsStock(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 5)

	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items:         []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 2}},
		PaymentMethod: model.PaymentCash,
	})
	require.NoError(t, err)

	assert.Equal(t, "VTA-000001", sale.SaleNumber)
	assert.Equal(t, model.SaleStatusCompleted, sale.Status)
	assert.Equal(t, seller.UserID, sale.UserID)
	assertDecimal(t, "20.00", sale.Subtotal)
	assertDecimal(t, "4.20", sale.Tax)
	assertDecimal(t, "0", sale.Discount)
	assertDecimal(t, "24.20", sale.Total)
	require.Len(t, sale.Items, 1)
	assert.Equal(t, "P1", sale.Items[0].ProductName)
	assertDecimal(t, "10.00", sale.Items[0].UnitPrice)
	assertDecimal(t, "20.00", sale.Items[0].Subtotal)

	assert.Equal(t, int64(3), e.stock(t, p1.ID))
	assert.Equal(t, 1, e.cache.invalidated)

	// 保存された値も同じ
	stored, err := e.sales.GetSale(ctx, seller, sale.ID)
	require.NoError(t, err)
	assertDecimal(t, "24.20", stored.Total)
	assert.Len(t, stored.Items, 1)

	ms, err := infra.NewInventoryGormRepository(e.db).ListMovements(ctx, p1.ID, 10)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, model.StockMovementSale, ms[0].Reason)
	assert.Equal(t, int64(-2), ms[0].Delta)
}

func TestCreateSale_DiscountAndSnapshot(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "Yerba", "3.33", 10)
	p2 := e.product(t, "Azucar", "1.50", 10)

	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{
			{ProductID: p1.ID, Quantity: 3},
			{ProductID: p2.ID, Quantity: 1},
		},
		PaymentMethod: model.PaymentCard,
		Discount:      dec("1.00"),
	})
	require.NoError(t, err)

	// 9.99 + 1.50 = 11.49, tax = 2.4129 -> 2.41
	assertDecimal(t, "11.49", sale.Subtotal)
	assertDecimal(t, "2.41", sale.Tax)
	assertDecimal(t, "1.00", sale.Discount)
	assertDecimal(t, "12.90", sale.Total)
	assert.True(t, sale.Total.Equal(sale.Subtotal.Add(sale.Tax).Sub(sale.Discount)))

	// 後で商品名・価格を変えても明細は変わらない
	p1.Name = "Yerba 1kg"
	p1.Price = dec("5.00")
	require.NoError(t, infra.NewProductGormRepository(e.db).Update(ctx, p1))

	stored, err := e.sales.GetSale(ctx, admin, sale.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	for _, it := range stored.Items {
		if it.ProductID == p1.ID {
			assert.Equal(t, "Yerba", it.ProductName)
			assertDecimal(t, "3.33", it.UnitPrice)
		}
	}
}

func TestCreateSale_InsufficientStockLeavesNothing(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 1)

	_, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 2}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, usecase.ErrInsufficientStock)
	assert.Equal(t, usecase.KindInsufficientStock, usecase.KindOf(err))

	var ise *usecase.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, "P1", ise.ProductName)
	assert.Equal(t, int64(2), ise.Requested)
	assert.Equal(t, int64(1), ise.Available)

	assert.Equal(t, int64(1), e.stock(t, p1.ID))
	assert.Equal(t, int64(0), e.countSales(t))
	assert.Equal(t, 0, e.cache.invalidated)
}

func TestCreateSale_RepeatedProductUsesCumulativeQuantity(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 3)

	_, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p1.ID, Quantity: 2},
		},
	})
	var ise *usecase.InsufficientStockError
	require.True(t, errors.As(err, &ise))
	assert.Equal(t, int64(4), ise.Requested)
	assert.Equal(t, int64(3), e.stock(t, p1.ID))

	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{
			{ProductID: p1.ID, Quantity: 1},
			{ProductID: p1.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Len(t, sale.Items, 2)
	assert.Equal(t, int64(0), e.stock(t, p1.ID))
}

func TestCreateSale_FailureOnLaterLineRollsBackEarlierLines(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 5)
	p2 := e.product(t, "P2", "2.00", 0)

	_, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{
			{ProductID: p1.ID, Quantity: 1},
			{ProductID: p2.ID, Quantity: 1},
		},
	})
	assert.ErrorIs(t, err, usecase.ErrInsufficientStock)
	assert.Equal(t, int64(5), e.stock(t, p1.ID))

	_, err = e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{
			{ProductID: p1.ID, Quantity: 1},
			{ProductID: uuid.NewString(), Quantity: 1},
		},
	})
	assert.Equal(t, usecase.KindNotFound, usecase.KindOf(err))
	assert.Equal(t, int64(5), e.stock(t, p1.ID))
	assert.Equal(t, int64(0), e.countSales(t))

	// 失敗した分の番号は使われない
	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "VTA-000001", sale.SaleNumber)
}

func TestCreateSale_Validation(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 5)
	inactive := e.product(t, "Old", "1.00", 5)
	inactive.IsActive = false
	require.NoError(t, infra.NewProductGormRepository(e.db).Update(ctx, inactive))

	cases := []struct {
		name string
		in   usecase.CreateSaleInput
	}{
		{"empty cart", usecase.CreateSaleInput{}},
		{"zero quantity", usecase.CreateSaleInput{Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 0}}}},
		{"negative quantity", usecase.CreateSaleInput{Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: -1}}}},
		{"missing product id", usecase.CreateSaleInput{Items: []usecase.SaleLineInput{{Quantity: 1}}}},
		{"bad payment method", usecase.CreateSaleInput{Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}}, PaymentMethod: "BITCOIN"}},
		{"negative discount", usecase.CreateSaleInput{Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}}, Discount: dec("-1")}},
		{"negative discount below a cent", usecase.CreateSaleInput{Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}}, Discount: dec("-0.004")}},
		{"discount above total", usecase.CreateSaleInput{Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}}, Discount: dec("12.11")}},
		{"inactive product", usecase.CreateSaleInput{Items: []usecase.SaleLineInput{{ProductID: inactive.ID, Quantity: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.sales.CreateSale(ctx, seller, tc.in)
			assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))
		})
	}

	assert.Equal(t, int64(5), e.stock(t, p1.ID))
	assert.Equal(t, int64(0), e.countSales(t))

	_, err := e.sales.CreateSale(ctx, usecase.Actor{}, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
	})
	assert.Equal(t, usecase.KindUnauthorized, usecase.KindOf(err))

	// 割引で合計がちょうど0はOK
	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items:    []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
		Discount: dec("12.10"),
	})
	require.NoError(t, err)
	assertDecimal(t, "0", sale.Total)
	assert.Equal(t, model.PaymentCash, sale.PaymentMethod)
}

func TestCreateSale_IdempotencyKey(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 5)

	in := usecase.CreateSaleInput{
		Items:          []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
		IdempotencyKey: "req-1",
	}
	first, err := e.sales.CreateSale(ctx, seller, in)
	require.NoError(t, err)

	again, err := e.sales.CreateSale(ctx, seller, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.SaleNumber, again.SaleNumber)
	assert.Len(t, again.Items, 1)
	assert.Equal(t, int64(4), e.stock(t, p1.ID))

	// 別ユーザーなら同じキーでも別の売上
	other := usecase.Actor{UserID: "seller-2", Role: model.RoleSeller}
	third, err := e.sales.CreateSale(ctx, other, in)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
	assert.Equal(t, int64(3), e.stock(t, p1.ID))
}

func TestCancelSale_RestoresStockAndRejectsSecondCancel(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 5)

	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), e.stock(t, p1.ID))

	cancelled, err := e.sales.CancelSale(ctx, admin, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleStatusCancelled, cancelled.Status)
	assert.Equal(t, int64(5), e.stock(t, p1.ID))

	stored, err := e.sales.GetSale(ctx, admin, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SaleStatusCancelled, stored.Status)

	_, err = e.sales.CancelSale(ctx, admin, sale.ID)
	assert.Equal(t, usecase.KindConflict, usecase.KindOf(err))
	assert.Equal(t, int64(5), e.stock(t, p1.ID))

	_, err = e.sales.CancelSale(ctx, admin, uuid.NewString())
	assert.Equal(t, usecase.KindNotFound, usecase.KindOf(err))

	logs, _, err := infra.NewAuditLogGormRepository(e.db).List(ctx, repo.AuditLogFilter{ResourceID: &sale.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionCancelSale, logs[0].Action)
}

func TestCancelSale_SkipsDeletedProduct(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 5)
	p2 := e.product(t, "P2", "1.00", 5)

	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{
			{ProductID: p1.ID, Quantity: 1},
			{ProductID: p2.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.NoError(t, infra.NewProductGormRepository(e.db).SoftDelete(ctx, p2.ID))

	_, err = e.sales.CancelSale(ctx, admin, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), e.stock(t, p1.ID))
	assert.Equal(t, int64(3), e.stock(t, p2.ID))
}

func TestCancelSale_ConcurrentCancelsSucceedOnce(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 5)

	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 2}},
	})
	require.NoError(t, err)

	const n = 5
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.sales.CancelSale(ctx, admin, sale.ID)
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case usecase.KindOf(err) == usecase.KindConflict:
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, int64(5), e.stock(t, p1.ID))
}

func TestCreateSale_ConcurrentNoOversellAndUniqueNumbers(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 10)

	const workers = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	numbers := map[string]bool{}
	insufficient := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
				Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, usecase.ErrInsufficientStock) {
					insufficient++
				}
				return
			}
			assert.False(t, numbers[s.SaleNumber], "duplicate sale number %s", s.SaleNumber)
			numbers[s.SaleNumber] = true
		}()
	}
	wg.Wait()

	assert.Len(t, numbers, 10)
	assert.Equal(t, workers-10, insufficient)
	assert.Equal(t, int64(0), e.stock(t, p1.ID))

	// 欠番なし
	for i := int64(1); i <= 10; i++ {
		assert.True(t, numbers[model.FormatSaleNumber(i)], "missing %s", model.FormatSaleNumber(i))
	}
}

func TestEnsureSaleSequence_ContinuesFromExistingSales(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 5)

	// 連番テーブルが消えても既存の最大番号から続ける
	require.NoError(t, infra.NewSaleGormRepository(e.db).Create(ctx, model.Sale{
		ID: uuid.NewString(), SaleNumber: "VTA-000041", UserID: seller.UserID,
		Subtotal: dec("1"), Tax: dec("0"), Discount: dec("0"), Total: dec("1"),
		PaymentMethod: model.PaymentCash, Status: model.SaleStatusCompleted,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, e.db.Where("1 = 1").Delete(&model.Sequence{}).Error)
	require.NoError(t, e.sales.EnsureSaleSequence(ctx))

	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, "VTA-000042", sale.SaleNumber)
}

func TestGetTodaysSales(t *testing.T) {
	now := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	clock := now
	e := newEngine(t, func() time.Time { return clock })
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 20)

	// 昨日の売上
	clock = now.Add(-24 * time.Hour)
	_, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	clock = now
	s1, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	s2, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	other := usecase.Actor{UserID: "seller-2", Role: model.RoleSeller}
	_, err = e.sales.CreateSale(ctx, other, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	cancelled, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	_, err = e.sales.CancelSale(ctx, admin, cancelled.ID)
	require.NoError(t, err)

	mine, err := e.sales.GetTodaysSales(ctx, seller)
	require.NoError(t, err)
	assert.Equal(t, "2026-05-20", mine.Date)
	assert.Equal(t, 2, mine.Count)
	require.Len(t, mine.Sales, 2)
	assertDecimal(t, s1.Total.Add(s2.Total).String(), mine.Total)
	for _, s := range mine.Sales {
		assert.NotEmpty(t, s.Items)
	}

	all, err := e.sales.GetTodaysSales(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count)
	assertDecimal(t, "48.40", all.Total)
}

func TestListSales_SellerSeesOnlyOwn(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	p1 := e.product(t, "P1", "10.00", 20)
	other := usecase.Actor{UserID: "seller-2", Role: model.RoleSeller}

	mine, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	theirs, err := e.sales.CreateSale(ctx, other, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	// user_idを指定しても自分の分だけ
	out, err := e.sales.ListSales(ctx, seller, usecase.ListSalesInput{UserID: &other.UserID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, mine.ID, out.Items[0].ID)

	out, err = e.sales.ListSales(ctx, admin, usecase.ListSalesInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.Total)

	out, err = e.sales.ListSales(ctx, admin, usecase.ListSalesInput{UserID: &other.UserID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)

	_, err = e.sales.GetSale(ctx, seller, theirs.ID)
	assert.Equal(t, usecase.KindNotFound, usecase.KindOf(err))

	_, err = e.sales.ListSales(ctx, admin, usecase.ListSalesInput{Limit: 500})
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))
	_, err = e.sales.ListSales(ctx, admin, usecase.ListSalesInput{Status: "VOID"})
	assert.Equal(t, usecase.KindValidation, usecase.KindOf(err))
}

func TestGetSale_KeepsCartLineOrder(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()

	lines := make([]usecase.SaleLineInput, 0, 8)
	want := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		p := e.product(t, fmt.Sprintf("P%d", i), "1.00", 10)
		lines = append(lines, usecase.SaleLineInput{ProductID: p.ID, Quantity: int64(i + 1)})
		want = append(want, p.Name)
	}

	sale, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{Items: lines})
	require.NoError(t, err)

	got, err := e.sales.GetSale(ctx, seller, sale.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 8)
	names := make([]string, 0, len(got.Items))
	for i, it := range got.Items {
		names = append(names, it.ProductName)
		assert.Equal(t, i, it.LineNo)
		assert.Equal(t, int64(i+1), it.Quantity)
	}
	assert.Equal(t, want, names)

	cancelled, err := e.sales.CancelSale(ctx, admin, sale.ID)
	require.NoError(t, err)
	require.Len(t, cancelled.Items, 8)
	assert.Equal(t, want[0], cancelled.Items[0].ProductName)
	assert.Equal(t, want[7], cancelled.Items[7].ProductName)
}

// 逆順のカートの作成と取消が同時に走っても全部終わる
func TestCreateAndCancel_OppositeLineOrder(t *testing.T) {
	e := newEngine(t, nil)
	ctx := context.Background()
	a := e.product(t, "A", "1.00", 100)
	b := e.product(t, "B", "1.00", 100)

	first, err := e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
		Items: []usecase.SaleLineInput{{ProductID: b.ID, Quantity: 1}, {ProductID: a.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var createErr, cancelErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, createErr = e.sales.CreateSale(ctx, seller, usecase.CreateSaleInput{
			Items: []usecase.SaleLineInput{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 2}},
		})
	}()
	go func() {
		defer wg.Done()
		_, cancelErr = e.sales.CancelSale(ctx, admin, first.ID)
	}()
	wg.Wait()

	require.NoError(t, createErr)
	require.NoError(t, cancelErr)
	assert.Equal(t, int64(98), e.stock(t, a.ID))
	assert.Equal(t, int64(98), e.stock(t, b.ID))
}
