package models

// Config はデータベース接続やサーバー設定を保持します。
// config.json から読み込み、環境変数で上書きします。
type Config struct {
	DBHost     string `json:"db_host"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`

	RedisAddr     string `json:"redis_addr"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	JWTSecret   string `json:"jwt_secret"`
	FrontendURL string `json:"frontend_url"`
	ListenAddr  string `json:"listen_addr"`
	TimeZone    string `json:"time_zone"` // 「今日」のチェックイン判定に使うタイムゾーン
}
