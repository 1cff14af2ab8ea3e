package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	SMTP         SMTPConfig
	Notify       NotifyConfig
	Event        EventConfig
	Pricing      PricingConfig
	BaseURL      string
	OrganizerPin string
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Whole-API request budget enforced by middleware.RateLimit.
	RateLimitRPS   int
	RateLimitBurst int

	// Proxies whose X-Forwarded-For is believed. Empty means the socket
	// address is the client, which keeps the PIN throttle unspoofable.
	TrustedProxies []string
}

// DatabaseConfig is empty-hosted when the service should run on the
// in-memory store.
type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxFailures int
	Window      time.Duration
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type KafkaConfig struct {
	Brokers            []string
	GroupID            string
	EventsTopic        string
	NotificationsTopic string
}

// MockMode reports whether the producer should only log instead of
// talking to a broker.
func (k KafkaConfig) MockMode() bool { return len(k.Brokers) == 0 }

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Port != 0 && s.Username != "" && s.Password != ""
}

// Sender is the envelope From address, falling back to the SMTP user.
func (s SMTPConfig) Sender() string {
	if s.From != "" {
		return s.From
	}
	return s.Username
}

type NotifyConfig struct {
	Transport string // "smtp" or "kafka"
	Worker    bool
	Timeout   time.Duration
}

type EventConfig struct {
	Name     string
	Date     string
	Timing   string
	Lineup   string
	Location string
	Policy   string
	Currency string
}

type PricingConfig struct {
	Prices   map[string]int64
	SoldOut  []string
	Reasons  map[string]string
	Ordering []string
}

func Load() *Config {
	port := getEnvOrDefault("PORT", "3000")

	return &Config{
		Server: ServerConfig{
			Port:         port,
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),

			RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),
			TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
		},
		Database: DatabaseConfig{
			Host:         os.Getenv("DB_HOST"),
			Port:         getEnvOrDefault("DB_PORT", "3306"),
			Username:     getEnvOrDefault("DB_USER", "root"),
			Password:     os.Getenv("DB_PASS"),
			Database:     getEnvOrDefault("DB_NAME", "ticket_gate"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:        os.Getenv("REDIS_ADDR"),
			Password:    os.Getenv("REDIS_PASSWORD"),
			DB:          getEnvInt("REDIS_DB", 0),
			MaxFailures: getEnvInt("PIN_MAX_FAILURES", 5),
			Window:      getEnvDuration("PIN_FAILURE_WINDOW", 15*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(os.Getenv("KAFKA_BROKERS")),
			GroupID:            getEnvOrDefault("KAFKA_GROUP_ID", "ticket-gate-mailer"),
			EventsTopic:        getEnvOrDefault("KAFKA_EVENTS_TOPIC", "ticket-events"),
			NotificationsTopic: getEnvOrDefault("KAFKA_NOTIFICATIONS_TOPIC", "ticket-notifications"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnvInt("SMTP_PORT", 0),
			Username: os.Getenv("SMTP_USER"),
			Password: os.Getenv("SMTP_PASS"),
			From:     os.Getenv("EMAIL_FROM"),
		},
		Notify: NotifyConfig{
			Transport: strings.ToLower(getEnvOrDefault("NOTIFY_TRANSPORT", "smtp")),
			Worker:    getEnvBool("NOTIFY_WORKER", false),
			Timeout:   getEnvDuration("NOTIFY_TIMEOUT", 10*time.Second),
		},
		Event:        DefaultEvent(),
		Pricing:      loadPricing(),
		BaseURL:      strings.TrimRight(getEnvOrDefault("BASE_URL", "http://localhost:"+port), "/"),
		OrganizerPin: getEnvOrDefault("ORGANIZER_SCAN_PIN", "7777"),
	}
}

func DefaultEvent() EventConfig {
	return EventConfig{
		Name:     getEnvOrDefault("EVENT_NAME", "ELECTRAMCO"),
		Date:     getEnvOrDefault("EVENT_DATE", "07 February"),
		Timing:   getEnvOrDefault("EVENT_TIMING", "3:00 AM – 12:00 PM"),
		Lineup:   getEnvOrDefault("EVENT_LINEUP", "Assem | Dizzy | HN2 | Mark | Nour Oden | Big Surprise DJ"),
		Location: getEnvOrDefault("EVENT_LOCATION", "Meet point: Downtown Cairo, exact pin will be unlocked 12 hours before event by WhatsApp confirmation."),
		Policy:   getEnvOrDefault("EVENT_POLICY", "21+ | Couples and mixed groups only | Selective entry"),
		Currency: getEnvOrDefault("EVENT_CURRENCY", "EGP"),
	}
}

// loadPricing reads TICKET_PRICES ("standing=1500,group=5000") and
// SOLD_OUT_CATEGORIES ("vip"). Unset variables keep the launch prices.
func loadPricing() PricingConfig {
	p := PricingConfig{
		Prices:   map[string]int64{"standing": 1500, "group": 5000, "vip": 5000},
		Ordering: []string{"standing", "group", "vip"},
		SoldOut:  []string{"vip"},
		Reasons:  map[string]string{"vip": "VIP tables are sold out."},
	}

	if raw := os.Getenv("TICKET_PRICES"); raw != "" {
		p.Prices = map[string]int64{}
		p.Ordering = nil
		for _, pair := range splitList(raw) {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			amount, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				continue
			}
			key = strings.ToLower(strings.TrimSpace(key))
			p.Prices[key] = amount
			p.Ordering = append(p.Ordering, key)
		}
	}
	if raw, ok := os.LookupEnv("SOLD_OUT_CATEGORIES"); ok {
		p.SoldOut = splitList(strings.ToLower(raw))
	}
	return p
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
