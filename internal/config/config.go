package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Alias1177/SignalEngine/internal/analyze"
	"github.com/Alias1177/SignalEngine/internal/cache"
	"github.com/Alias1177/SignalEngine/internal/calculate"
	"github.com/Alias1177/SignalEngine/internal/database"
	"github.com/Alias1177/SignalEngine/internal/engine"
	"github.com/Alias1177/SignalEngine/internal/trading/risk"
	"github.com/Alias1177/SignalEngine/models"
)

// Config holds all application configuration
type Config struct {
	TwelveAPIKey     string             `yaml:"-"`
	TwelveBaseURL    string             `yaml:"twelve_base_url" default:"https://api.twelvedata.com" validate:"url"`
	Symbols          []string           `yaml:"symbols" validate:"min=1,dive,required"`
	Timeframes       []models.Timeframe `yaml:"timeframes" validate:"min=1"`
	CandleCount      int                `yaml:"candle_count" default:"100" validate:"gte=2,lte=5000"`
	AnalysisInterval time.Duration      `yaml:"analysis_interval" default:"15m" validate:"gte=1s"`
	FetchTimeout     time.Duration      `yaml:"fetch_timeout" default:"10s" validate:"gt=0"`
	RequestsPerSec   int                `yaml:"requests_per_sec" default:"8" validate:"gt=0"`
	MaxRetries       int                `yaml:"max_retries" default:"3" validate:"gte=0"`
	CacheTTL         time.Duration      `yaml:"cache_ttl" default:"1h" validate:"gte=0"`
	AutoTrack        bool               `yaml:"auto_track"`
	LogLevel         string             `yaml:"log_level" default:"info" validate:"oneof=trace debug info warn error"`
	LogFormat        string             `yaml:"log_format" default:"console" validate:"oneof=console json"`
	HTTPAddr         string             `yaml:"http_addr" default:":8080"`

	Account  risk.AccountConfig `yaml:"account"`
	Strategy Strategy           `yaml:"strategy"`
	Postgres PostgresConfig     `yaml:"postgres"`
	Redis    RedisConfig        `yaml:"redis"`
	Telegram TelegramConfig     `yaml:"telegram"`
}

// Strategy is the tunable part of the analysis, loadable from STRATEGY_FILE
type Strategy struct {
	Windows    calculate.Windows                `yaml:"windows"`
	Weights    map[models.IndicatorKind]float64 `yaml:"weights" validate:"dive,gte=0"`
	Thresholds analyze.Thresholds               `yaml:"thresholds"`
	Aggregator analyze.AggregatorConfig         `yaml:"aggregator"`
}

// PostgresConfig enables trade persistence when Enabled
type PostgresConfig struct {
	Enabled                   bool `yaml:"enabled"`
	database.ConnectionParams `yaml:",inline"`
}

// RedisConfig enables the shared indicator cache when Enabled
type RedisConfig struct {
	Enabled           bool `yaml:"enabled"`
	cache.RedisConfig `yaml:",inline"`
}

// TelegramConfig enables signal notifications when Token is set
type TelegramConfig struct {
	Token   string  `yaml:"-"`
	ChatIDs []int64 `yaml:"chat_ids" validate:"required_with=Token"`
}

// Load initializes configuration: .env, struct defaults, optional
// strategy file, then environment overrides, and validates the result
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path := os.Getenv("STRATEGY_FILE"); path != "" {
		if err := cfg.loadStrategy(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the configuration with every default applied
func Defaults() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	cfg.Symbols = []string{"EUR/USD"}
	cfg.Timeframes = []models.Timeframe{models.Timeframe1H, models.Timeframe4H}
	cfg.Strategy.Weights = analyze.DefaultWeights()
	cfg.Strategy.Aggregator.TimeframeWeights = analyze.DefaultTimeframeWeights()
	return &cfg, nil
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, tf := range c.Timeframes {
		if !tf.Valid() {
			return fmt.Errorf("invalid config: unsupported timeframe %q", tf)
		}
	}
	return nil
}

// loadStrategy overlays a YAML strategy file on the defaults. Weight tables
// in the file are merged key by key.
func (c *Config) loadStrategy(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read strategy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &c.Strategy); err != nil {
		return fmt.Errorf("parse strategy file %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("Strategy file loaded")
	return nil
}

// ScoringConfig returns the per-timeframe voting policy
func (c *Config) ScoringConfig() analyze.ScoringConfig {
	return analyze.ScoringConfig{
		Weights:    c.Strategy.Weights,
		Thresholds: c.Strategy.Thresholds,
	}
}

// EngineConfig assembles the analysis pipeline settings
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Timeframes:   c.Timeframes,
		CandleCount:  c.CandleCount,
		FetchTimeout: c.FetchTimeout,
		CacheTTL:     c.CacheTTL,
		Windows:      c.Strategy.Windows,
		Scoring:      c.ScoringConfig(),
		Aggregator:   c.Strategy.Aggregator,
	}
}

func (c *Config) applyEnv() error {
	env := envReader{}

	env.setString("TWELVE_API_KEY", &c.TwelveAPIKey)
	env.setString("TWELVE_BASE_URL", &c.TwelveBaseURL)
	env.setList("SYMBOLS", &c.Symbols)
	env.setTimeframes("TIMEFRAMES", &c.Timeframes)
	env.setInt("CANDLE_COUNT", &c.CandleCount)
	env.setDuration("ANALYSIS_INTERVAL", &c.AnalysisInterval)
	env.setDuration("FETCH_TIMEOUT", &c.FetchTimeout)
	env.setInt("REQUESTS_PER_SEC", &c.RequestsPerSec)
	env.setInt("MAX_RETRIES", &c.MaxRetries)
	env.setDuration("CACHE_TTL", &c.CacheTTL)
	env.setBool("AUTO_TRACK", &c.AutoTrack)
	env.setString("LOG_LEVEL", &c.LogLevel)
	env.setString("LOG_FORMAT", &c.LogFormat)
	env.setString("HTTP_ADDR", &c.HTTPAddr)

	env.setFloat("ACCOUNT_BALANCE", &c.Account.AccountBalance)
	env.setRiskLevel("RISK_LEVEL", &c.Account.RiskLevel)
	env.setInt("MAX_DAILY_SIGNALS", &c.Account.MaxDailySignals)
	env.setDuration("COOLDOWN", &c.Account.CooldownDuration)
	env.setFloat("DRAWDOWN_CEILING", &c.Account.DrawdownCeiling)
	env.setFloat("DRAWDOWN_RESUME", &c.Account.DrawdownResume)
	env.setFloat("MAX_POSITION_SIZE", &c.Account.MaxPositionSize)
	env.setFloat("MAX_PORTFOLIO_HEAT", &c.Account.MaxPortfolioHeat)

	env.setFloat("MIN_CONFIDENCE", &c.Strategy.Aggregator.MinConfidence)
	env.setInt("MIN_CONFIRMATIONS", &c.Strategy.Aggregator.MinConfirmations)
	env.setFloat("STOP_ATR_MULT", &c.Strategy.Aggregator.StopATRMultiplier)
	env.setFloat("TARGET_ATR_MULT", &c.Strategy.Aggregator.TargetATRMultiplier)

	if env.setString("POSTGRES_HOST", &c.Postgres.Host) {
		c.Postgres.Enabled = true
	}
	env.setString("POSTGRES_PORT", &c.Postgres.Port)
	env.setString("POSTGRES_USER", &c.Postgres.User)
	env.setString("POSTGRES_PASSWORD", &c.Postgres.Password)
	env.setString("POSTGRES_DB", &c.Postgres.DBName)
	env.setString("POSTGRES_SSLMODE", &c.Postgres.SSLMode)

	if env.setString("REDIS_ADDR", &c.Redis.Addr) {
		c.Redis.Enabled = true
	}
	env.setString("REDIS_PASSWORD", &c.Redis.Password)
	env.setInt("REDIS_DB", &c.Redis.DB)

	env.setString("TELEGRAM_BOT_TOKEN", &c.Telegram.Token)
	env.setInt64s("TELEGRAM_CHAT_IDS", &c.Telegram.ChatIDs)

	return env.err
}

// envReader applies set variables and keeps the first parse error
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *envReader) fail(key, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("env %s=%q: %w", key, value, err)
	}
}

func (r *envReader) setString(key string, dst *string) bool {
	v, ok := r.lookup(key)
	if ok {
		*dst = v
	}
	return ok
}

func (r *envReader) setInt(key string, dst *int) {
	if v, ok := r.lookup(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) setFloat(key string, dst *float64) {
	if v, ok := r.lookup(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) setBool(key string, dst *bool) {
	if v, ok := r.lookup(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (r *envReader) setDuration(key string, dst *time.Duration) {
	if v, ok := r.lookup(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = d
	}
}

func (r *envReader) setList(key string, dst *[]string) {
	if v, ok := r.lookup(key); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
	}
}

func (r *envReader) setTimeframes(key string, dst *[]models.Timeframe) {
	if v, ok := r.lookup(key); ok {
		tfs, err := models.ParseTimeframes(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = tfs
	}
}

func (r *envReader) setRiskLevel(key string, dst *risk.RiskLevel) {
	if v, ok := r.lookup(key); ok {
		level, err := risk.ParseRiskLevel(v)
		if err != nil {
			r.fail(key, v, err)
			return
		}
		*dst = level
	}
}

func (r *envReader) setInt64s(key string, dst *[]int64) {
	if v, ok := r.lookup(key); ok {
		var out []int64
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				r.fail(key, v, err)
				return
			}
			out = append(out, id)
		}
		*dst = out
	}
}
