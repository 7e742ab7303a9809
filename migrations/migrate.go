// migrate はサーバーを起動せずにテーブルとインデックスだけを作成する。
//
//	go run ./migrations -config config.json
package main

import (
	"flag"

	"gymserver/database"
	"gymserver/utils"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	logger, err := utils.InitLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	config, err := database.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal("設定ファイルの読み込みに失敗しました", zap.Error(err))
	}

	db, err := database.InitPostgreSQL(config, logger)
	if err != nil {
		logger.Fatal("PostgreSQLの初期化に失敗しました", zap.Error(err))
	}
	if err := database.AutoMigrateDB(db, logger); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
}
