package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"pos/internal/config"
	"pos/internal/handler"
	"pos/internal/infra/cache"
	"pos/internal/infra/db"
	infraRepo "pos/internal/infra/repository"
	"pos/internal/server"
	"pos/internal/usecase"
	auth "pos/internal/usecase/auth_usecase"
	"pos/internal/validator"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	//.envはあれば読む
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	ctx := context.Background()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Error("db migrate failed", "error", err)
		os.Exit(1)
	}

	//レポートキャッシュ（REDIS_ADDRがなければキャッシュなし）
	var reportCache usecase.ReportCache = usecase.NoopReportCache{}
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient, err = cache.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, report cache disabled", "error", err)
		} else {
			reportCache = cache.NewReportCache(redisClient, "")
		}
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	saleRepo := infraRepo.NewSaleGormRepository(gormDB)
	saleItemRepo := infraRepo.NewSaleItemGormRepository(gormDB)
	sequenceRepo := infraRepo.NewSequenceGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	categoryRepo := infraRepo.NewCategoryGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//usecaseに渡す部品
	userValidator := validator.NewUserValidator(userRepo)
	hasher := auth.NewBcryptPasswordHasher(12)
	verifier := auth.NewBcryptPasswordVerifier()
	clock := auth.SystemClock{}
	issuer, err := auth.NewHS256Issuer(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		panic(err)
	}

	//Usecase生成
	saleUC := usecase.NewSaleUsecase(txm, saleRepo, saleItemRepo, sequenceRepo, reportCache, usecase.SaleConfig{
		TaxRate:  cfg.TaxRate,
		Location: cfg.Location,
	}, log)
	reportUC := usecase.NewReportUsecase(saleRepo, saleItemRepo, reportCache, cfg.ReportCacheTTL, cfg.Location, nil, log)
	productUC := usecase.NewProductUsecase(txm, productRepo, categoryRepo, inventoryRepo, log)
	categoryUC := usecase.NewCategoryUsecase(categoryRepo)
	userUC := usecase.NewUserUsecase(userRepo, auditRepo)
	loginUC := auth.NewLoginUsecase(userRepo, userValidator, verifier, issuer, clock)
	createUserUC := auth.NewCreateUserUsecase(userRepo, userValidator, hasher, auth.UUIDGenerator{}, clock)
	updateUserUC := auth.NewUpdateUserUsecase(userRepo, auditRepo, userValidator, hasher, clock)
	auditUC := usecase.NewAuditUsecase(auditRepo)

	//売上番号の連番を既存データにそろえる
	if err := saleUC.EnsureSaleSequence(ctx); err != nil {
		log.Error("sale sequence init failed", "error", err)
		os.Exit(1)
	}

	if cfg.AdminUsername != "" {
		created, err := createUserUC.EnsureAdmin(ctx, auth.CreateUserInput{
			Username: cfg.AdminUsername,
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
		})
		if err != nil {
			log.Error("admin bootstrap failed", "error", err)
			os.Exit(1)
		}
		if created {
			log.Info("admin user created", "username", cfg.AdminUsername)
		}
	}

	//Handler生成
	e := server.New(cfg, userRepo, server.Handlers{
		Auth:     handler.NewAuthHandler(loginUC, userUC),
		Sale:     handler.NewSaleHandler(saleUC, cfg.Location),
		Report:   handler.NewReportHandler(reportUC, cfg.Location),
		Product:  handler.NewProductHandler(productUC),
		Category: handler.NewCategoryHandler(categoryUC),
		User:     handler.NewUserHandler(createUserUC, updateUserUC, userUC),
		Audit:    handler.NewAuditHandler(auditUC, cfg.Location),
	}, log)

	//Server起動
	go func() {
		log.Info("server started", "addr", cfg.Addr(), "db", cfg.DBDriver)
		if err := server.Start(e, cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	ops := map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
		"database": func(ctx context.Context) error {
			sqlDB, err := gormDB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
	if redisClient != nil {
		ops["redis"] = func(ctx context.Context) error {
			return redisClient.Close()
		}
	}

	wait := gfshutdown.GracefulShutdown(ctx, cfg.ShutdownTimeout, ops)
	exitCode := <-wait
	log.Info("server exited", "code", exitCode)
	os.Exit(exitCode)
}
