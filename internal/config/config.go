package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bookstore/internal/domain/model"

	"github.com/shopspring/decimal"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	Store string // postgres / memory

	DatabaseURL      string // あれば最優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット
	GoEnv     string // dev/prod

	PointsEarnRate             decimal.Decimal     // 支払額に掛ける付与率（0.01 = 1%）
	PointsAllowNegativeBalance bool                // 控除で残高をマイナスにしてよいか
	InFlightStatuses           []model.OrderStatus // 処理中数量に数えるステータス
	ShippingFlatFee            decimal.Decimal     // ONLINE注文の送料

	KafkaBrokers    []string
	KafkaOrderTopic string
	OutboxBatchSize int
	OutboxInterval  time.Duration

	StripeWebhookSecret string
	PaymentNotifySecret string
}

var DefaultInFlightStatuses = []model.OrderStatus{
	model.OrderStatusPending,
	model.OrderStatusConfirmed,
	model.OrderStatusShipped,
	model.OrderStatusDeliveryFailed,
	model.OrderStatusRedelivering,
	model.OrderStatusReturningToWarehouse,
}

// Loadは環境変数
func Load() (Config, error) {
	cfg := Config{
		Port:  os.Getenv("PORT"),
		Store: getenv("STORE", StorePostgres),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		GoEnv:     os.Getenv("GO_ENV"),

		KafkaOrderTopic: getenv("KAFKA_ORDER_TOPIC", "bookstore.orders"),

		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PaymentNotifySecret: os.Getenv("PAYMENT_NOTIFY_SECRET"),
	}

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}

	switch cfg.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			if err := cfg.requirePostgres(); err != nil {
				return Config{}, err
			}
		}
	default:
		return Config{}, fmt.Errorf("STORE must be %s or %s", StorePostgres, StoreMemory)
	}

	var err error
	if cfg.PointsEarnRate, err = decimalEnv("POINTS_EARN_RATE", "0.01"); err != nil {
		return Config{}, err
	}
	if cfg.PointsEarnRate.IsNegative() {
		return Config{}, fmt.Errorf("POINTS_EARN_RATE must not be negative")
	}
	if cfg.ShippingFlatFee, err = decimalEnv("SHIPPING_FLAT_FEE", "30000"); err != nil {
		return Config{}, err
	}
	if cfg.PointsAllowNegativeBalance, err = boolEnv("POINTS_ALLOW_NEGATIVE_BALANCE", false); err != nil {
		return Config{}, err
	}
	if cfg.InFlightStatuses, err = statusesEnv("INVENTORY_IN_FLIGHT_STATUSES"); err != nil {
		return Config{}, err
	}
	if cfg.OutboxBatchSize, err = intEnv("OUTBOX_BATCH_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.OutboxInterval, err = durationEnv("OUTBOX_INTERVAL", 2*time.Second); err != nil {
		return Config{}, err
	}
	cfg.KafkaBrokers = splitCSV(getenv("KAFKA_BROKERS", "localhost:9092"))

	return cfg, nil
}

func (c *Config) requirePostgres() error {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return err
	}
	c.PostgresPort = pgPort

	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required")
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	return nil
}

// 接続URL（gormとmigrateで共通）
func (c Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     "/" + c.PostgresDB,
		RawQuery: "sslmode=" + url.QueryEscape(c.PostgresSSLMode),
	}
	return u.String()
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func getenv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return 0, fmt.Errorf("%s must be positive number", key)
	}
	return i, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be bool: %w", key, err)
	}
	return b, nil
}

func decimalEnv(key string, def string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getenv(key, def))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be decimal: %w", key, err)
	}
	return d, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be positive duration", key)
	}
	return d, nil
}

func statusesEnv(key string) ([]model.OrderStatus, error) {
	v := os.Getenv(key)
	if v == "" {
		return append([]model.OrderStatus(nil), DefaultInFlightStatuses...), nil
	}
	var out []model.OrderStatus
	for _, s := range splitCSV(v) {
		st := model.OrderStatus(strings.ToUpper(s))
		if !st.IsValid() {
			return nil, fmt.Errorf("%s has unknown status %q", key, s)
		}
		out = append(out, st)
	}
	return out, nil
}

func splitCSV(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
