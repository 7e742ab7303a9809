package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gymserver/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// LoadConfig は config.json を読み込み、環境変数で上書きする。
// ファイルが無い場合は環境変数とデフォルト値だけで組み立てる。
func LoadConfig(filename string) (models.Config, error) {
	var config models.Config
	configFile, err := os.Open(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config, err
	}
	if err == nil {
		defer configFile.Close()
		if err := json.NewDecoder(configFile).Decode(&config); err != nil {
			return config, fmt.Errorf("decode %s: %w", filename, err)
		}
	}

	overrideFromEnv(&config)
	applyDefaults(&config)

	if config.JWTSecret == "" {
		return config, errors.New("jwt_secret (JWT_SECRET) is not set")
	}
	if _, err := time.LoadLocation(config.TimeZone); err != nil {
		return config, fmt.Errorf("invalid time_zone %q: %w", config.TimeZone, err)
	}
	return config, nil
}

func overrideFromEnv(config *models.Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&config.DBHost, "DB_HOST")
	setString(&config.DBUser, "DB_USER")
	setString(&config.DBPassword, "DB_PASSWORD")
	setString(&config.DBName, "DB_NAME")
	setString(&config.DBSSLMode, "DB_SSLMODE")
	setString(&config.RedisAddr, "REDIS_ADDR")
	setString(&config.RedisPassword, "REDIS_PASSWORD")
	setString(&config.JWTSecret, "JWT_SECRET")
	setString(&config.FrontendURL, "FRONTEND_URL")
	setString(&config.ListenAddr, "LISTEN_ADDR")
	setString(&config.TimeZone, "TIME_ZONE")

	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			config.RedisDB = db
		}
	}
}

func applyDefaults(config *models.Config) {
	if config.DBSSLMode == "" {
		config.DBSSLMode = "disable"
	}
	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}
	if config.TimeZone == "" {
		config.TimeZone = "Local"
	}
}

// DSN はgormのpostgresドライバ向け接続文字列
func DSN(config models.Config) string {
	return fmt.Sprintf("host=%s user=%s dbname=%s password=%s sslmode=%s",
		config.DBHost, config.DBUser, config.DBName, config.DBPassword, config.DBSSLMode)
}

func InitPostgreSQL(config models.Config, logger *zap.Logger) (*gorm.DB, error) {
	const maxRetries = 3
	const retryInterval = 5 * time.Second

	var err error
	for i := 0; i <= maxRetries; i++ {
		var gormDB *gorm.DB
		// TranslateError で一意制約違反を gorm.ErrDuplicatedKey に変換する
		gormDB, err = gorm.Open(postgres.Open(DSN(config)), &gorm.Config{TranslateError: true})
		if err == nil {
			return gormDB, nil
		}
		logger.Error("Retrying database connection", zap.Int("retry", i), zap.Error(err))
		if i < maxRetries {
			time.Sleep(retryInterval)
		}
	}
	return nil, fmt.Errorf("failed to connect to database: %w", err)
}

// InitRedis はRedisに接続する。RedisAddr が空なら nil を返し、Redisなしで動かす。
func InitRedis(config models.Config, logger *zap.Logger) (*redis.Client, error) {
	if config.RedisAddr == "" {
		logger.Info("REDIS_ADDR is not set, running without Redis")
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", config.RedisAddr))
	return rdb, nil
}
