package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"pos/internal/domain/model"
	repo "pos/internal/repository"

	"github.com/shopspring/decimal"
)

const (
	defaultStatsDays = 30
	defaultChartDays = 7
	maxChartDays     = 90
	topProductsLimit = 10
)

type ReportUsecase struct {
	sales     repo.SaleRepository
	saleItems repo.SaleItemRepository
	cache     ReportCache
	ttl       time.Duration
	loc       *time.Location
	now       func() time.Time
	log       *slog.Logger
}

func NewReportUsecase(
	sales repo.SaleRepository,
	saleItems repo.SaleItemRepository,
	cache ReportCache,
	ttl time.Duration,
	loc *time.Location,
	now func() time.Time,
	log *slog.Logger,
) *ReportUsecase {
	if cache == nil {
		cache = NoopReportCache{}
	}
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReportUsecase{
		sales:     sales,
		saleItems: saleItems,
		cache:     cache,
		ttl:       ttl,
		loc:       loc,
		now:       now,
		log:       log,
	}
}

type StatsInput struct {
	From *time.Time
	To   *time.Time
	// 管理者だけが指定できる
	UserID *string
}

type StatsSummary struct {
	TotalSales    int             `json:"total_sales"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalTax      decimal.Decimal `json:"total_tax"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	AverageTicket decimal.Decimal `json:"average_ticket"`
}

type PaymentMethodStats struct {
	PaymentMethod model.PaymentMethod `json:"payment_method"`
	Count         int                 `json:"count"`
	Total         decimal.Decimal     `json:"total"`
}

type TopProduct struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

type DailyStats struct {
	Date  string          `json:"date"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type SalesStats struct {
	From            time.Time            `json:"from"`
	To              time.Time            `json:"to"`
	Summary         StatsSummary         `json:"summary"`
	ByPaymentMethod []PaymentMethodStats `json:"by_payment_method"`
	TopProducts     []TopProduct         `json:"top_products"`
	Daily           []DailyStats         `json:"daily"`
}

// 確定済み売上の集計。[from, to)
func (u *ReportUsecase) SalesStats(ctx context.Context, actor Actor, in StatsInput) (SalesStats, error) {
	if actor.UserID == "" {
		return SalesStats{}, NewAppError(KindUnauthorized, "unauthorized")
	}

	to := startOfDay(u.now(), u.loc).AddDate(0, 0, 1)
	if in.To != nil {
		to = *in.To
	}
	from := to.AddDate(0, 0, -defaultStatsDays)
	if in.From != nil {
		from = *in.From
	}
	if !from.Before(to) {
		return SalesStats{}, validationError("from must be before to")
	}

	userID := in.UserID
	if scoped := actor.scope(model.PermReportsViewAll); scoped != nil {
		userID = scoped
	}

	key := fmt.Sprintf("stats:%d:%d:%s", from.Unix(), to.Unix(), userKey(userID))
	var cached SalesStats
	gen, hit := u.cacheGet(ctx, key, &cached)
	if hit {
		return cached, nil
	}

	sales, err := u.sales.ListByRange(ctx, from, to, model.SaleStatusCompleted, userID)
	if err != nil {
		return SalesStats{}, dbError(err)
	}
	ids := make([]string, 0, len(sales))
	for _, s := range sales {
		ids = append(ids, s.ID)
	}
	itemsBySale, err := u.saleItems.ListBySaleIDs(ctx, ids)
	if err != nil {
		return SalesStats{}, dbError(err)
	}

	out := buildStats(sales, itemsBySale, u.loc)
	out.From = from
	out.To = to

	u.cacheSet(ctx, gen, key, out)
	return out, nil
}

func buildStats(sales []model.Sale, itemsBySale map[string][]model.SaleItem, loc *time.Location) SalesStats {
	out := SalesStats{
		Summary: StatsSummary{
			TotalRevenue:  decimal.Zero,
			TotalTax:      decimal.Zero,
			TotalDiscount: decimal.Zero,
			AverageTicket: decimal.Zero,
		},
		ByPaymentMethod: []PaymentMethodStats{},
		TopProducts:     []TopProduct{},
		Daily:           []DailyStats{},
	}

	byMethod := map[model.PaymentMethod]*PaymentMethodStats{}
	byProduct := map[string]*TopProduct{}
	byDay := map[string]*DailyStats{}

	for _, s := range sales {
		out.Summary.TotalSales++
		out.Summary.TotalRevenue = out.Summary.TotalRevenue.Add(s.Total)
		out.Summary.TotalTax = out.Summary.TotalTax.Add(s.Tax)
		out.Summary.TotalDiscount = out.Summary.TotalDiscount.Add(s.Discount)

		m, ok := byMethod[s.PaymentMethod]
		if !ok {
			m = &PaymentMethodStats{PaymentMethod: s.PaymentMethod, Total: decimal.Zero}
			byMethod[s.PaymentMethod] = m
		}
		m.Count++
		m.Total = m.Total.Add(s.Total)

		day := s.CreatedAt.In(loc).Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &DailyStats{Date: day, Total: decimal.Zero}
			byDay[day] = d
		}
		d.Count++
		d.Total = d.Total.Add(s.Total)

		//商品名は売上時点のもの
		for _, it := range itemsBySale[s.ID] {
			p, ok := byProduct[it.ProductID]
			if !ok {
				p = &TopProduct{ProductID: it.ProductID, ProductName: it.ProductName, Revenue: decimal.Zero}
				byProduct[it.ProductID] = p
			}
			p.Quantity += it.Quantity
			p.Revenue = p.Revenue.Add(it.Subtotal)
		}
	}

	if out.Summary.TotalSales > 0 {
		out.Summary.AverageTicket = out.Summary.TotalRevenue.
			Div(decimal.NewFromInt(int64(out.Summary.TotalSales))).
			Round(2)
	}

	for _, m := range byMethod {
		out.ByPaymentMethod = append(out.ByPaymentMethod, *m)
	}
	sort.Slice(out.ByPaymentMethod, func(i, j int) bool {
		a, b := out.ByPaymentMethod[i], out.ByPaymentMethod[j]
		if !a.Total.Equal(b.Total) {
			return a.Total.GreaterThan(b.Total)
		}
		return a.PaymentMethod < b.PaymentMethod
	})

	for _, p := range byProduct {
		out.TopProducts = append(out.TopProducts, *p)
	}
	sort.Slice(out.TopProducts, func(i, j int) bool {
		a, b := out.TopProducts[i], out.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.ProductName < b.ProductName
	})
	if len(out.TopProducts) > topProductsLimit {
		out.TopProducts = out.TopProducts[:topProductsLimit]
	}

	for _, d := range byDay {
		out.Daily = append(out.Daily, *d)
	}
	sort.Slice(out.Daily, func(i, j int) bool { return out.Daily[i].Date < out.Daily[j].Date })

	return out
}

type ChartsData struct {
	Days   int          `json:"days"`
	Series []DailyStats `json:"series"`
}

// 直近 days 日（今日を含む）の日別件数と売上。売上がない日は0
func (u *ReportUsecase) ChartsData(ctx context.Context, actor Actor, days int) (ChartsData, error) {
	if actor.UserID == "" {
		return ChartsData{}, NewAppError(KindUnauthorized, "unauthorized")
	}
	if days == 0 {
		days = defaultChartDays
	}
	if days < 1 || days > maxChartDays {
		return ChartsData{}, validationError("days must be between 1 and %d", maxChartDays)
	}

	end := startOfDay(u.now(), u.loc).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -days)
	userID := actor.scope(model.PermReportsViewAll)

	key := fmt.Sprintf("charts:%d:%d:%s", days, start.Unix(), userKey(userID))
	var cached ChartsData
	gen, hit := u.cacheGet(ctx, key, &cached)
	if hit {
		return cached, nil
	}

	sales, err := u.sales.ListByRange(ctx, start, end, model.SaleStatusCompleted, userID)
	if err != nil {
		return ChartsData{}, dbError(err)
	}

	byDay := make(map[string]*DailyStats, days)
	series := make([]DailyStats, 0, days)
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d).Format("2006-01-02")
		series = append(series, DailyStats{Date: date, Total: decimal.Zero})
	}
	for i := range series {
		byDay[series[i].Date] = &series[i]
	}
	for _, s := range sales {
		if d, ok := byDay[s.CreatedAt.In(u.loc).Format("2006-01-02")]; ok {
			d.Count++
			d.Total = d.Total.Add(s.Total)
		}
	}

	out := ChartsData{Days: days, Series: series}
	u.cacheSet(ctx, gen, key, out)
	return out, nil
}

// キャッシュの失敗は集計し直せばよいのでエラーにしない
// 世代は集計の前に一度だけ読み、Setにも同じ値を使う。
// 世代が読めなければ -1 を返し、Setもしない
func (u *ReportUsecase) cacheGet(ctx context.Context, key string, dst any) (int64, bool) {
	gen, err := u.cache.Generation(ctx)
	if err != nil {
		u.log.WarnContext(ctx, "report cache generation failed", slog.String("key", key), slog.Any("err", err))
		return -1, false
	}
	ok, err := u.cache.Get(ctx, gen, key, dst)
	if err != nil {
		u.log.WarnContext(ctx, "report cache get failed", slog.String("key", key), slog.Any("err", err))
		return gen, false
	}
	return gen, ok
}

func (u *ReportUsecase) cacheSet(ctx context.Context, gen int64, key string, v any) {
	if gen < 0 {
		return
	}
	if err := u.cache.Set(ctx, gen, key, v, u.ttl); err != nil {
		u.log.WarnContext(ctx, "report cache set failed", slog.String("key", key), slog.Any("err", err))
	}
}

func userKey(userID *string) string {
	if userID == nil {
		return "all"
	}
	return *userID
}
