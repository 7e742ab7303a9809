package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gymserver/accounts"    //会員・トレーナー・管理者の参照
	"gymserver/checkin"     //QRチェックインとトークン掃除
	"gymserver/database"    //PostgreSQLとRedisの初期化
	"gymserver/handlers"    //HTTPとWebSocketのエンドポイント
	"gymserver/metrics"     //Prometheusメトリクス
	"gymserver/middlewares" //認証とレート制限
	"gymserver/notify"      //通知の保存と配信
	"gymserver/utils"       //ロガーの初期化とCronジョブ

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	logger, err := utils.InitLogger() // ロガーの初期化
	if err != nil {
		panic(err) // 失敗した場合はプログラム停止
	}
	defer logger.Sync() // ロガーのクリーンアップ

	config, err := database.LoadConfig("config.json")
	if err != nil {
		logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
	}
	location, err := time.LoadLocation(config.TimeZone)
	if err != nil {
		logger.Fatal("Invalid time zone", zap.Error(err))
	}

	// PostgreSQLとRedisを並行して初期化
	var db *gorm.DB
	var rdb *redis.Client
	var g errgroup.Group
	g.Go(func() error {
		var err error
		db, err = database.InitPostgreSQL(config, logger)
		return err
	})
	g.Go(func() error {
		var err error
		rdb, err = database.InitRedis(config, logger)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}

	if err := database.AutoMigrateDB(db, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(reg)

	// Redisがなければ掃除の重複防止はプロセス内だけ
	var locker checkin.Locker = checkin.NopLocker{}
	if rdb != nil {
		locker = checkin.NewRedisLocker(rdb)
	}

	directory := accounts.NewGormDirectory(db)
	checkinStore := checkin.NewGormStore(db)
	reaper := checkin.NewReaper(checkinStore, locker, recorder, logger)
	checkins := checkin.NewService(checkinStore, reaper, location, recorder, logger)
	registry := notify.NewRegistry(recorder, logger)
	dispatcher := notify.NewDispatcher(notify.NewGormStore(db), directory, registry, recorder, logger)
	limiter := middlewares.NewRateLimiter(30, 5, logger)

	// クーロンスケジューラのセットアップと呼び出し
	scheduler, err := utils.CronCleaner(reaper, limiter, logger)
	if err != nil {
		logger.Fatal("Failed to schedule cron jobs", zap.Error(err))
	}

	h := handlers.NewHandler(checkins, dispatcher, registry, directory, config.FrontendURL, logger)
	router := handlers.SetupRouter(h, handlers.RouterConfig{
		JWTSecret:   []byte(config.JWTSecret),
		FrontendURL: config.FrontendURL,
		Directory:   directory,
		Limiter:     limiter,
		Gatherer:    reg,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              config.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to run HTTP server", zap.Error(err))
		}
	}()
	logger.Info("Server started", zap.String("addr", config.ListenAddr))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("Shutting down")

	<-scheduler.Stop().Done()
	registry.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}
	reaper.Wait()

	if rdb != nil {
		rdb.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
