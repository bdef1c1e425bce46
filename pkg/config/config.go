package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"SentiTrade/pkg/util"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Log         struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		TradeRateLimit  float64       `yaml:"trade_rate_limit"` // manual trades per second per client
		TradeBurst      float64       `yaml:"trade_burst"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`
	Postgres struct {
		Enabled  bool              `yaml:"enabled"`
		URL      string            `yaml:"url"`
		Host     string            `yaml:"host"`
		Port     int               `yaml:"port"`
		User     string            `yaml:"user"`
		Password string            `yaml:"password"`
		Database string            `yaml:"database"`
		SSLMode  string            `yaml:"sslmode"`
		Params   map[string]string `yaml:"params"`
		Migrate  bool              `yaml:"migrate"`
	} `yaml:"postgres"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled           bool     `yaml:"enabled"`
		Brokers           []string `yaml:"brokers"`
		TradesTopic       string   `yaml:"trades_topic"`
		ObservationsTopic string   `yaml:"observations_topic"`
		RequiredAcks      int      `yaml:"required_acks"`
		Compression       string   `yaml:"compression"`
		Producer          struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Broker struct {
		Type      string        `yaml:"type"` // alpaca or paper
		BaseURL   string        `yaml:"base_url"`
		APIKey    string        `yaml:"api_key"`
		APISecret string        `yaml:"api_secret"`
		Timeout   time.Duration `yaml:"timeout"`
		PaperCash float64       `yaml:"paper_cash"`
	} `yaml:"broker"`
	Price struct {
		Type   string             `yaml:"type"` // yahoo or static
		Static map[string]float64 `yaml:"static"`
	} `yaml:"price"`
	Trading struct {
		ConfigSource       string        `yaml:"config_source"` // file or redis
		ConfigPath         string        `yaml:"config_path"`
		ConfigKey          string        `yaml:"config_key"`
		MaxPositionSize    float64       `yaml:"max_position_size"`
		SentimentThreshold float64       `yaml:"sentiment_threshold"`
		Symbols            []string      `yaml:"symbols"`
		ObservationLimit   int           `yaml:"observation_limit"`
		Retention          time.Duration `yaml:"retention"`
	} `yaml:"trading"`
	Scheduler struct {
		AutoStart         bool          `yaml:"auto_start"`
		CycleInterval     time.Duration `yaml:"cycle_interval"`
		ReconcileInterval time.Duration `yaml:"reconcile_interval"`
		InstrumentDelay   time.Duration `yaml:"instrument_delay"`
		InstrumentTimeout time.Duration `yaml:"instrument_timeout"`
		SettleWait        time.Duration `yaml:"settle_wait"`
		OrderTimeout      time.Duration `yaml:"order_timeout"`
		LockTTL           time.Duration `yaml:"lock_ttl"`
	} `yaml:"scheduler"`
}

// Default returns a config usable without any file: paper broker, in-memory stores.
func Default() *Config {
	var c Config
	c.Environment = "development"
	c.applyDefaults()
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads .env (if present), then the YAML file, then applies environment overrides.
// A missing YAML file is not an error; defaults are used.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		c = Default()
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.Enabled = true
		c.Redis.Host, c.Redis.Port, c.Redis.Password, c.Redis.DB = parseRedisURL(v, c.Redis.Port)
	}
	if v := os.Getenv("POSTGRES_URL"); v != "" {
		c.Postgres.Enabled = true
		c.Postgres.URL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Enabled = true
		c.Kafka.Brokers = util.SplitList(v)
	}
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		c.Broker.APIKey = v
		c.Broker.Type = "alpaca"
	}
	if v := os.Getenv("ALPACA_SECRET_KEY"); v != "" {
		c.Broker.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		c.Broker.BaseURL = v
	}
	if v := os.Getenv("TRADE_FREQUENCY"); v != "" {
		if secs := util.ParseIntDefault(v, 0); secs > 0 {
			c.Scheduler.CycleInterval = time.Duration(secs) * time.Second
		}
	}
	if v, ok := util.ParseFloat(os.Getenv("MAX_POSITION_SIZE")); ok {
		c.Trading.MaxPositionSize = v
	}
	if v, ok := util.ParseFloat(os.Getenv("SENTIMENT_THRESHOLD")); ok {
		c.Trading.SentimentThreshold = v
	}
	if v := os.Getenv("TRADING_CONFIG_PATH"); v != "" {
		c.Trading.ConfigPath = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Trading.Symbols = util.SplitList(v)
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Server.TradeRateLimit == 0 {
		c.Server.TradeRateLimit = 1
	}
	if c.Server.TradeBurst == 0 {
		c.Server.TradeBurst = 5
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Kafka.TradesTopic == "" {
		c.Kafka.TradesTopic = "sentitrade.trades"
	}
	if c.Kafka.ObservationsTopic == "" {
		c.Kafka.ObservationsTopic = "sentitrade.observations"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "sentitrade"
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "sentitrade"
	}
	if c.Broker.Type == "" {
		c.Broker.Type = "paper"
	}
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = "https://paper-api.alpaca.markets"
	}
	if c.Broker.Timeout == 0 {
		c.Broker.Timeout = 10 * time.Second
	}
	if c.Broker.PaperCash == 0 {
		c.Broker.PaperCash = 100000
	}
	if c.Price.Type == "" {
		c.Price.Type = "yahoo"
	}
	if c.Trading.ConfigSource == "" {
		c.Trading.ConfigSource = "file"
	}
	if c.Trading.ConfigPath == "" {
		c.Trading.ConfigPath = "configs/trading_config.json"
	}
	if c.Trading.ConfigKey == "" {
		c.Trading.ConfigKey = "trading_config"
	}
	if c.Trading.MaxPositionSize == 0 {
		c.Trading.MaxPositionSize = 10000
	}
	if c.Trading.SentimentThreshold == 0 {
		c.Trading.SentimentThreshold = 0.6
	}
	if c.Trading.ObservationLimit == 0 {
		c.Trading.ObservationLimit = 50
	}
	if c.Trading.Retention == 0 {
		c.Trading.Retention = 24 * time.Hour
	}
	if c.Scheduler.CycleInterval == 0 {
		c.Scheduler.CycleInterval = 300 * time.Second
	}
	if c.Scheduler.ReconcileInterval == 0 {
		c.Scheduler.ReconcileInterval = 60 * time.Second
	}
	if c.Scheduler.InstrumentDelay == 0 {
		c.Scheduler.InstrumentDelay = time.Second
	}
	if c.Scheduler.InstrumentTimeout == 0 {
		c.Scheduler.InstrumentTimeout = 2 * time.Minute
	}
	if c.Scheduler.SettleWait == 0 {
		c.Scheduler.SettleWait = time.Second
	}
	if c.Scheduler.OrderTimeout == 0 {
		c.Scheduler.OrderTimeout = 10 * time.Second
	}
	if c.Scheduler.LockTTL == 0 {
		c.Scheduler.LockTTL = time.Minute
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Broker.Type {
	case "paper":
	case "alpaca":
		if c.Broker.APIKey == "" || c.Broker.APISecret == "" {
			return fmt.Errorf("broker.api_key and broker.api_secret are required for alpaca")
		}
	default:
		return fmt.Errorf("broker.type must be 'alpaca' or 'paper', got '%s'", c.Broker.Type)
	}
	if c.Price.Type != "yahoo" && c.Price.Type != "static" {
		return fmt.Errorf("price.type must be 'yahoo' or 'static', got '%s'", c.Price.Type)
	}
	if c.Trading.ConfigSource != "file" && c.Trading.ConfigSource != "redis" {
		return fmt.Errorf("trading.config_source must be 'file' or 'redis', got '%s'", c.Trading.ConfigSource)
	}
	if c.Trading.ConfigSource == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("trading.config_source 'redis' requires redis.enabled")
	}
	if c.Trading.SentimentThreshold <= 0 || c.Trading.SentimentThreshold > 1 {
		return fmt.Errorf("trading.sentiment_threshold must be in (0, 1], got %v", c.Trading.SentimentThreshold)
	}
	if c.Trading.MaxPositionSize <= 0 {
		return fmt.Errorf("trading.max_position_size must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Scheduler.CycleInterval < time.Second || c.Scheduler.ReconcileInterval < time.Second {
		return fmt.Errorf("scheduler intervals must be at least 1s")
	}
	return nil
}

// parseRedisURL reads redis://[:password@]host:port[/db].
func parseRedisURL(raw string, defPort int) (host string, port int, password string, db int) {
	s := strings.TrimPrefix(strings.TrimPrefix(raw, "redis://"), "rediss://")
	port = defPort
	if at := strings.LastIndex(s, "@"); at >= 0 {
		creds := s[:at]
		s = s[at+1:]
		if i := strings.Index(creds, ":"); i >= 0 {
			password = creds[i+1:]
		} else {
			password = creds
		}
	}
	if slash := strings.Index(s, "/"); slash >= 0 {
		db = util.ParseIntDefault(s[slash+1:], 0)
		s = s[:slash]
	}
	host = s
	if colon := strings.LastIndex(s, ":"); colon >= 0 {
		host = s[:colon]
		port = util.ParseIntDefault(s[colon+1:], defPort)
	}
	return host, port, password, db
}
