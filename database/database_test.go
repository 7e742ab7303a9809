package database

import (
	"os"
	"path/filepath"
	"testing"

	"gymserver/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// 環境変数が上書きしないよう空にしておく
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "JWT_SECRET", "FRONTEND_URL", "LISTEN_ADDR", "TIME_ZONE"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_ReadsFileAndAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"db_host":"db","db_user":"gym","db_name":"gym","jwt_secret":"s3cret"}`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.DBHost != "db" || config.DBUser != "gym" {
		t.Errorf("unexpected db settings: %+v", config)
	}
	if config.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, want disable", config.DBSSLMode)
	}
	if config.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", config.ListenAddr)
	}
	if config.TimeZone != "Local" {
		t.Errorf("TimeZone = %q, want Local", config.TimeZone)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"db_host":"db","jwt_secret":"from-file","redis_db":1}`)
	t.Setenv("DB_HOST", "env-db")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("TIME_ZONE", "UTC")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.DBHost != "env-db" {
		t.Errorf("DBHost = %q, want env-db", config.DBHost)
	}
	if config.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q, want from-env", config.JWTSecret)
	}
	if config.RedisDB != 3 {
		t.Errorf("RedisDB = %d, want 3", config.RedisDB)
	}
	if config.TimeZone != "UTC" {
		t.Errorf("TimeZone = %q, want UTC", config.TimeZone)
	}
}

func TestLoadConfig_MissingFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "only-env")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.JWTSecret != "only-env" {
		t.Errorf("JWTSecret = %q, want only-env", config.JWTSecret)
	}
}

func TestLoadConfig_RequiresSecret(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"db_host":"db"}`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error when jwt_secret is missing")
	}
}

func TestLoadConfig_RejectsUnknownTimeZone(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"jwt_secret":"x","time_zone":"Mars/Olympus"}`)

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for unknown time zone")
	}
}

func TestDSN(t *testing.T) {
	got := DSN(models.Config{DBHost: "h", DBUser: "u", DBName: "n", DBPassword: "p", DBSSLMode: "require"})
	want := "host=h user=u dbname=n password=p sslmode=require"
	if got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
