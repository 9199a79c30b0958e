package config

import (
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	LogMode string // "release" | "debug"

	GeminiAPIKey      string
	GeminiEditModel   string
	GeminiDetectModel string

	TelegramBotToken string
	WebhookURL       string

	DatabaseURL    string
	MaxUploadBytes int64
}

func mustEnv(k string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		log.Fatalf("missing required env %s", k)
	}
	return v
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt64(k string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		log.Printf("config: bad %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

// Load читает .env (если есть) и переменные окружения. Ключ Gemini обязателен.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:    getEnv("PORT", "8080"),
		LogMode: getEnv("LOG_MODE", "release"),

		GeminiAPIKey:      mustEnv("GEMINI_API_KEY"),
		GeminiEditModel:   getEnv("GEMINI_EDIT_MODEL", "gemini-2.5-flash-image-preview"),
		GeminiDetectModel: getEnv("GEMINI_DETECT_MODEL", "gemini-2.5-flash"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		DatabaseURL:    ResolveDSN(),
		MaxUploadBytes: getEnvInt64("MAX_UPLOAD_BYTES", 20<<20),
	}
}

// ResolveDSN: DATABASE_URL, иначе собираем из POSTGRES_* / PG*. Пустая строка: БД не настроена.
func ResolveDSN() string {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		return v
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	host := strings.TrimSpace(os.Getenv("PGHOST"))
	if host == "" && pass == "" {
		return ""
	}
	if host == "" {
		host = "db"
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(getEnv("POSTGRES_USER", "retouch"), pass),
		Host:     net.JoinHostPort(host, getEnv("PGPORT", "5432")),
		Path:     "/" + getEnv("POSTGRES_DB", "retouch"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// SafeDSNSummary: DSN без пароля, для логов.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "dsn: parse error"
	}
	host, port := u.Host, ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return "host=" + host + " db=" + db + " user=" + u.User.Username()
	}
	return "host=" + host + " port=" + port + " db=" + db + " user=" + u.User.Username()
}
