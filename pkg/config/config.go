// pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string

	// Platform app credentials and surfaces
	APIKey           string
	APISecret        string
	Scopes           string
	AppURL           string // embedded app shell URL (https://host/shopify/app)
	AppHandle        string // apps.shopify.com/<handle> listing slug
	OAuthCallbackURL string
	AdminAPIVersion  string
	TestBilling      bool

	// Billing terms
	SubscriptionName string
	UsageDescription string
	UsagePriceUSD    float64
	UsageTerms       string

	// Rate limiting
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Processing backend (opaque downstream; does the actual image work)
	StudioBaseURL    string
	StudioServiceKey string

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	return Config{
		Env:              env("SHOPGATE_ENV", "dev"),
		HTTPAddr:         env("SHOPGATE_HTTP_ADDR", ":8080"),
		APIKey:           env("SHOPIFY_API_KEY", ""),
		APISecret:        env("SHOPIFY_API_SECRET", ""),
		Scopes:           env("SHOPIFY_SCOPES", "read_products,write_products"),
		AppURL:           env("SHOPIFY_APP_URL", "https://app.nudio.ai/shopify/app"),
		AppHandle:        env("SHOPIFY_APP_HANDLE", "nudio"),
		OAuthCallbackURL: env("SHOPIFY_OAUTH_CALLBACK", "https://app.nudio.ai/shopify/oauth/callback"),
		AdminAPIVersion:  env("SHOPIFY_ADMIN_API_VERSION", "2024-10"),
		TestBilling:      envBool("SHOPIFY_TEST_BILLING", false),
		SubscriptionName: env("SHOPIFY_SUBSCRIPTION_NAME", "Nudio (Product Studio)"),
		UsageDescription: env("SHOPIFY_USAGE_DESCRIPTION", "Nudio image processing"),
		UsagePriceUSD:    envFloat("SHOPIFY_USAGE_PRICE_USD", 0.08),
		UsageTerms:       env("SHOPIFY_USAGE_TERMS", "8 cents per image, billed through Shopify."),
		RateLimitWindow:  envDur("RATE_LIMIT_WINDOW_SEC", 60) * time.Second,
		RateLimitMax:     envInt("RATE_LIMIT_MAX_REQUESTS", 45),
		StudioBaseURL:    env("STUDIO_FUNCTION_BASE", ""),
		StudioServiceKey: env("STUDIO_SERVICE_KEY", ""),
		RedisURL:         env("REDIS_URL", ""),
		DatabaseURL:      env("DATABASE_URL", ""),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
