package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	// HS256 secret for the internal session JWT.
	SessionSecret string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string

	// Emails granted the ADMIN role on every sign-in. Membership is the
	// source of truth; removing an email demotes the user at next sign-in.
	AdminEmails []string

	// bcrypt hash checked against the x-admin-password header on the
	// export surfaces.
	AdminPassHash string

	// Submission rate limit: RateLimit requests per RateWindow per IP.
	RateLimit  int
	RateWindow time.Duration

	// When set, the submission limiter counts in Redis instead of
	// process memory.
	RedisAddr string

	CORSOrigins []string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	pub := os.Getenv("PUBLIC_URL")
	defRedirect := ""
	if pub != "" {
		defRedirect = strings.TrimSuffix(pub, "/") + "/api/auth/google/callback"
	}
	return Config{
		HTTPAddr:  addr,
		PublicURL: pub,

		DBDriver: envOr("DB_DRIVER", "sqlite"),
		DBDSN:    envOr("DB_DSN", ""),

		SessionSecret: envOr("SESSION_SECRET", "dev-only-session-secret"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURI:  envOr("GOOGLE_REDIRECT_URI", defRedirect),

		AdminEmails:   csvOr("ADMIN_EMAILS", ""),
		AdminPassHash: os.Getenv("ADMIN_PASS_HASH"),

		RateLimit:  envInt("RATE_LIMIT", 10),
		RateWindow: time.Duration(envInt("RATE_WINDOW_SEC", 60)) * time.Second,

		RedisAddr: os.Getenv("REDIS_ADDR"),

		CORSOrigins: csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return def
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
