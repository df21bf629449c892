package main

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/cache"
	"app/internal/infra/db"
	"app/internal/infra/events"
	"app/internal/infra/gateway"
	infraRepo "app/internal/infra/repository"
	"app/internal/notify"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	//.envはローカル用（なければ環境変数をそのまま使う）
	_ = godotenv.Load("../.env")

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.Product{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.PaymentRecord{},
		&model.BillingCustomer{},
		&model.BillingSchedule{},
	); err != nil {
		log.Fatal("auto migrate failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	cartItemRepo := infraRepo.NewCartItemGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	fundingRepo := infraRepo.NewFundingGormRepository(gormDB)
	billingCustomerRepo := infraRepo.NewBillingCustomerGormRepository(gormDB)
	billingScheduleRepo := infraRepo.NewBillingScheduleGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//決済ゲートウェイ
	pg := gateway.NewPortOneClient(cfg.PortOneAPIBase, cfg.PortOneAPISecret, cfg.PortOneChannelKey, log)

	//Redis（達成率キャッシュ）
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	fundingCache := cache.NewFundingRedisCache(rdb, log)

	//Kafka（注文イベント）
	producer := events.NewProducer(cfg.KafkaBrokers, log)
	defer producer.Close()

	//販売者通知（非同期ワーカー）
	mailer := notify.NewLogMailer(log)
	dispatcher := notify.NewDispatcher(mailer, log)
	defer dispatcher.Close()

	//Usecase生成
	scheduler := usecase.NewBillingScheduler(pg, billingCustomerRepo, log)
	productUC := usecase.NewProductUsecase(productRepo, fundingCache, log)
	cartUC := usecase.NewCartUsecase(cartItemRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(usecase.OrderUsecaseDeps{
		Tx:               txManager,
		Products:         productRepo,
		CartItems:        cartItemRepo,
		Orders:           orderRepo,
		OrderItems:       orderItemRepo,
		BillingSchedules: billingScheduleRepo,
		Funding:          fundingRepo,
		Gateway:          pg,
		Scheduler:        scheduler,
		Notifier:         dispatcher,
		Events:           producer,
		Cache:            fundingCache,
		Log:              log,
	})

	//Handler生成
	h := server.Handlers{
		Product: handler.NewProductHandler(productUC),
		Cart:    handler.NewCartHandler(cartUC),
		Order:   handler.NewOrderHandler(orderUC),
	}

	//Server起動
	if err := server.Start(cfg, h); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
