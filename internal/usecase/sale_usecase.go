package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"pos/internal/domain/model"
	repo "pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	maxCustomerNameLen   = 200
	maxIdempotencyKeyLen = 255
)

type SaleConfig struct {
	TaxRate  decimal.Decimal
	Location *time.Location
	// テスト用。nilなら time.Now
	Now func() time.Time
}

type SaleUsecase struct {
	tx        repo.TransactionManager
	sales     repo.SaleRepository
	saleItems repo.SaleItemRepository
	sequences repo.SequenceRepository
	cache     ReportCache
	taxRate   decimal.Decimal
	loc       *time.Location
	now       func() time.Time
	log       *slog.Logger
}

// DI
func NewSaleUsecase(
	tx repo.TransactionManager,
	sales repo.SaleRepository,
	saleItems repo.SaleItemRepository,
	sequences repo.SequenceRepository,
	cache ReportCache,
	cfg SaleConfig,
	log *slog.Logger,
) *SaleUsecase {
	if cache == nil {
		cache = NoopReportCache{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return &SaleUsecase{
		tx:        tx,
		sales:     sales,
		saleItems: saleItems,
		sequences: sequences,
		cache:     cache,
		taxRate:   cfg.TaxRate,
		loc:       cfg.Location,
		now:       cfg.Now,
		log:       log,
	}
}

type SaleLineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type CreateSaleInput struct {
	Items         []SaleLineInput
	PaymentMethod model.PaymentMethod
	CustomerName  *string
	Discount      decimal.Decimal
	// 空なら冪等性チェックしない
	IdempotencyKey string
}

// 起動時に売上番号の連番を既存の最大値にそろえる
func (u *SaleUsecase) EnsureSaleSequence(ctx context.Context) error {
	var floor int64
	last, ok, err := u.sequences.LastSaleNumber(ctx)
	if err != nil {
		return err
	}
	if ok {
		n, err := model.ParseSaleNumber(last)
		if err != nil {
			return err
		}
		floor = n
	}
	return u.sequences.Ensure(ctx, model.SaleNumberSequence, floor)
}

var errIdempotentReplay = errors.New("idempotent replay")

func (u *SaleUsecase) CreateSale(ctx context.Context, actor Actor, in CreateSaleInput) (model.Sale, error) {
	if actor.UserID == "" {
		return model.Sale{}, NewAppError(KindUnauthorized, "unauthorized")
	}

	//入力チェック（DBに触る前）
	if len(in.Items) == 0 {
		return model.Sale{}, validationError("sale must contain at least one item")
	}
	for i, line := range in.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			return model.Sale{}, validationError("items[%d]: product_id is required", i)
		}
		if line.Quantity < 1 {
			return model.Sale{}, validationError("items[%d]: quantity must be at least 1", i)
		}
	}

	method := in.PaymentMethod
	if method == "" {
		method = model.PaymentCash
	}
	if !method.Valid() {
		return model.Sale{}, validationError("invalid payment_method")
	}

	if in.Discount.IsNegative() {
		return model.Sale{}, validationError("discount must be >= 0")
	}
	discount := in.Discount.Round(2)

	customer := trimOptional(in.CustomerName)
	if customer != nil && len(*customer) > maxCustomerNameLen {
		return model.Sale{}, validationError("customer_name too long")
	}

	var idemKey *string
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return model.Sale{}, validationError("invalid idempotency key")
		}
		// キーは操作ユーザーごと
		k := actor.UserID + ":" + key
		idemKey = &k
	}

	var out model.Sale

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		if idemKey != nil {
			existing, found, err := r.Sales().FindByIdempotencyKey(ctx, *idemKey)
			if err != nil {
				return dbError(err)
			}
			if found {
				items, err := r.SaleItems().ListBySaleID(ctx, existing.ID)
				if err != nil {
					return dbError(err)
				}
				existing.Items = items
				out = existing
				return nil
			}
		}

		now := u.now().UTC()
		saleID := uuid.NewString()

		//入力順に商品確認。同じ商品が複数行あれば数量は合算で判定
		requested := make(map[string]int64, len(in.Items))
		names := make(map[string]string, len(in.Items))
		order := make([]string, 0, len(in.Items))
		items := make([]model.SaleItem, 0, len(in.Items))
		subtotal := decimal.Zero

		for i, line := range in.Items {
			p, err := r.Products().FindByID(ctx, line.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return notFoundError("product not found: " + line.ProductID)
			}
			if err != nil {
				return dbError(err)
			}
			if !p.IsActive {
				return validationError("product %q is not available for sale", p.Name)
			}

			if _, seen := requested[p.ID]; !seen {
				order = append(order, p.ID)
			}
			requested[p.ID] += line.Quantity
			names[p.ID] = p.Name

			if p.Stock < requested[p.ID] {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   requested[p.ID],
					Available:   p.Stock,
				}
			}

			//スナップショット
			lineSubtotal := p.Price.Mul(decimal.NewFromInt(line.Quantity)).Round(2)
			items = append(items, model.SaleItem{
				ID:          uuid.NewString(),
				SaleID:      saleID,
				LineNo:      i,
				ProductID:   p.ID,
				ProductName: p.Name,
				Quantity:    line.Quantity,
				UnitPrice:   p.Price,
				Subtotal:    lineSubtotal,
				Discount:    decimal.Zero,
				CreatedAt:   now,
			})
			subtotal = subtotal.Add(lineSubtotal)
		}

		tax := u.taxRate.Mul(subtotal).Round(2)
		total := subtotal.Add(tax).Sub(discount)
		if total.IsNegative() {
			return validationError("discount exceeds sale total")
		}

		//売上番号はこのTxの中で採番（rollbackなら欠番にならない）
		n, err := r.Sequences().Next(ctx, model.SaleNumberSequence)
		if err != nil {
			return dbError(err)
		}

		//行ロックの順番をそろえるため商品ID順に減算（足りないなら false）
		sort.Strings(order)
		for _, productID := range order {
			ok, err := r.Inventory().TryReserve(ctx, productID, requested[productID])
			if err != nil {
				return dbError(err)
			}
			if !ok {
				available := int64(0)
				if p, err := r.Products().FindByID(ctx, productID); err == nil {
					available = p.Stock
				}
				return &InsufficientStockError{
					ProductID:   productID,
					ProductName: names[productID],
					Requested:   requested[productID],
					Available:   available,
				}
			}
		}

		sale := model.Sale{
			ID:             saleID,
			SaleNumber:     model.FormatSaleNumber(n),
			UserID:         actor.UserID,
			Subtotal:       subtotal,
			Tax:            tax,
			Discount:       discount,
			Total:          total,
			PaymentMethod:  method,
			CustomerName:   customer,
			Status:         model.SaleStatusCompleted,
			IdempotencyKey: idemKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := r.Sales().Create(ctx, sale); err != nil {
			//同時に同じキーが入った
			if errors.Is(err, repo.ErrDuplicate) && idemKey != nil {
				return errIdempotentReplay
			}
			return dbError(err)
		}

		if err := r.SaleItems().CreateBulk(ctx, saleID, items); err != nil {
			return dbError(err)
		}

		//在庫履歴
		for _, productID := range order {
			ref := saleID
			if err := r.Inventory().RecordMovement(ctx, model.StockMovement{
				ProductID:   productID,
				Reason:      model.StockMovementSale,
				Delta:       -requested[productID],
				ReferenceID: &ref,
				ActorUserID: actor.UserID,
				Note:        sale.SaleNumber,
				CreatedAt:   now,
			}); err != nil {
				return dbError(err)
			}
		}

		sale.Items = items
		out = sale
		return nil
	})

	if errors.Is(err, errIdempotentReplay) {
		return u.findByIdempotencyKey(ctx, *idemKey)
	}
	if err != nil {
		return model.Sale{}, err
	}

	u.invalidateReports(ctx)
	u.log.InfoContext(ctx, "sale created",
		slog.String("sale_id", out.ID),
		slog.String("sale_number", out.SaleNumber),
		slog.String("user_id", out.UserID),
		slog.String("total", out.Total.StringFixed(2)),
	)
	return out, nil
}

func (u *SaleUsecase) findByIdempotencyKey(ctx context.Context, key string) (model.Sale, error) {
	s, found, err := u.sales.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return model.Sale{}, dbError(err)
	}
	if !found {
		return model.Sale{}, conflictError("idempotency conflict")
	}
	items, err := u.saleItems.ListBySaleID(ctx, s.ID)
	if err != nil {
		return model.Sale{}, dbError(err)
	}
	s.Items = items
	return s, nil
}

func (u *SaleUsecase) CancelSale(ctx context.Context, actor Actor, saleID string) (model.Sale, error) {
	if actor.UserID == "" {
		return model.Sale{}, NewAppError(KindUnauthorized, "unauthorized")
	}
	if strings.TrimSpace(saleID) == "" {
		return model.Sale{}, validationError("invalid id")
	}

	var out model.Sale

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		s, err := r.Sales().FindByID(ctx, saleID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("sale not found")
		}
		if err != nil {
			return dbError(err)
		}

		if s.Status == model.SaleStatusCancelled {
			return conflictError("sale is already cancelled")
		}
		if s.Status != model.SaleStatusCompleted {
			return conflictError("only completed sales can be cancelled")
		}

		//同時に取り消されたら片方だけが通る
		ok, err := r.Sales().CompareAndSetStatus(ctx, s.ID, model.SaleStatusCompleted, model.SaleStatusCancelled)
		if err != nil {
			return dbError(err)
		}
		if !ok {
			return conflictError("sale is already cancelled")
		}

		items, err := r.SaleItems().ListBySaleID(ctx, s.ID)
		if err != nil {
			return dbError(err)
		}

		//作成時と同じく商品ID順に戻す
		byProduct := make([]model.SaleItem, len(items))
		copy(byProduct, items)
		sort.SliceStable(byProduct, func(i, j int) bool { return byProduct[i].ProductID < byProduct[j].ProductID })

		now := u.now().UTC()
		for _, it := range byProduct {
			err := r.Inventory().Release(ctx, it.ProductID, it.Quantity)
			if errors.Is(err, repo.ErrNotFound) {
				// 削除済みの商品は戻さない
				u.log.WarnContext(ctx, "skip stock release for deleted product",
					slog.String("sale_id", s.ID),
					slog.String("product_id", it.ProductID),
				)
				continue
			}
			if err != nil {
				return dbError(err)
			}

			ref := s.ID
			if err := r.Inventory().RecordMovement(ctx, model.StockMovement{
				ProductID:   it.ProductID,
				Reason:      model.StockMovementCancel,
				Delta:       it.Quantity,
				ReferenceID: &ref,
				ActorUserID: actor.UserID,
				Note:        s.SaleNumber,
				CreatedAt:   now,
			}); err != nil {
				return dbError(err)
			}
		}

		//監査ログ
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			Action:       model.AuditActionCancelSale,
			ResourceType: model.AuditResourceSale,
			ResourceID:   s.ID,
			BeforeJSON:   `{"status":"` + string(model.SaleStatusCompleted) + `"}`,
			AfterJSON:    `{"status":"` + string(model.SaleStatusCancelled) + `"}`,
			CreatedAt:    now,
		}); err != nil {
			return dbError(err)
		}

		s.Status = model.SaleStatusCancelled
		s.UpdatedAt = now
		s.Items = items
		out = s
		return nil
	})
	if err != nil {
		return model.Sale{}, err
	}

	u.invalidateReports(ctx)
	u.log.InfoContext(ctx, "sale cancelled",
		slog.String("sale_id", out.ID),
		slog.String("sale_number", out.SaleNumber),
		slog.String("actor_user_id", actor.UserID),
	)
	return out, nil
}

type TodaysSales struct {
	Date  string          `json:"date"`
	Sales []model.Sale    `json:"sales"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// 今日（設定のタイムゾーン）の確定済み売上
func (u *SaleUsecase) GetTodaysSales(ctx context.Context, actor Actor) (TodaysSales, error) {
	if actor.UserID == "" {
		return TodaysSales{}, NewAppError(KindUnauthorized, "unauthorized")
	}

	start := startOfDay(u.now(), u.loc)
	end := start.AddDate(0, 0, 1)
	userID := actor.scope(model.PermSalesViewAll)

	out := TodaysSales{Date: start.Format("2006-01-02"), Sales: []model.Sale{}, Total: decimal.Zero}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		sales, err := r.Sales().ListByRange(ctx, start, end, model.SaleStatusCompleted, userID)
		if err != nil {
			return dbError(err)
		}

		ids := make([]string, 0, len(sales))
		for _, s := range sales {
			ids = append(ids, s.ID)
		}
		itemsBySale, err := r.SaleItems().ListBySaleIDs(ctx, ids)
		if err != nil {
			return dbError(err)
		}

		//件数と合計は同じ行から出す
		for i := range sales {
			sales[i].Items = itemsBySale[sales[i].ID]
			out.Total = out.Total.Add(sales[i].Total)
		}
		out.Sales = sales
		out.Count = len(sales)
		return nil
	})
	if err != nil {
		return TodaysSales{}, err
	}
	return out, nil
}

// 他人の売上は「存在しない扱い」
func (u *SaleUsecase) GetSale(ctx context.Context, actor Actor, saleID string) (model.Sale, error) {
	if actor.UserID == "" {
		return model.Sale{}, NewAppError(KindUnauthorized, "unauthorized")
	}

	s, err := u.sales.FindByID(ctx, saleID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Sale{}, notFoundError("sale not found")
	}
	if err != nil {
		return model.Sale{}, dbError(err)
	}
	if s.UserID != actor.UserID && !actor.Can(model.PermSalesViewAll) {
		return model.Sale{}, notFoundError("sale not found")
	}

	items, err := u.saleItems.ListBySaleID(ctx, s.ID)
	if err != nil {
		return model.Sale{}, dbError(err)
	}
	s.Items = items
	return s, nil
}

type ListSalesInput struct {
	Page          int
	Limit         int
	Status        model.SaleStatus
	PaymentMethod model.PaymentMethod
	UserID        *string
	From          *time.Time
	To            *time.Time
}

type SaleListOutput struct {
	Items []model.Sale `json:"items"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}

func (u *SaleUsecase) ListSales(ctx context.Context, actor Actor, in ListSalesInput) (SaleListOutput, error) {
	if actor.UserID == "" {
		return SaleListOutput{}, NewAppError(KindUnauthorized, "unauthorized")
	}
	if in.Page == 0 {
		in.Page = 1
	}
	if in.Limit == 0 {
		in.Limit = 20
	}
	if in.Page < 1 {
		return SaleListOutput{}, validationError("invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return SaleListOutput{}, validationError("invalid limit")
	}
	if in.Status != "" && !in.Status.Valid() {
		return SaleListOutput{}, validationError("invalid status")
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.Valid() {
		return SaleListOutput{}, validationError("invalid payment_method")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return SaleListOutput{}, validationError("from must be before to")
	}

	//一覧権限がなければ自分の売上だけ
	userID := in.UserID
	if scoped := actor.scope(model.PermSalesViewAll); scoped != nil {
		userID = scoped
	}

	items, total, err := u.sales.List(ctx, repo.SaleListFilter{
		Page:          in.Page,
		Limit:         in.Limit,
		Status:        in.Status,
		PaymentMethod: in.PaymentMethod,
		UserID:        userID,
		From:          in.From,
		To:            in.To,
	})
	if err != nil {
		return SaleListOutput{}, dbError(err)
	}

	return SaleListOutput{
		Items: items,
		Total: total,
		Page:  in.Page,
		Limit: in.Limit,
	}, nil
}

// 失敗しても売上は成立しているのでログだけ
func (u *SaleUsecase) invalidateReports(ctx context.Context) {
	if err := u.cache.Invalidate(ctx); err != nil {
		u.log.WarnContext(ctx, "report cache invalidate failed", slog.Any("err", err))
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
