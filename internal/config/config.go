package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Exchange ExchangeConfig
	Trading  TradingConfig
	Sizing   SizingConfig
	Risk     RiskConfig
	Pyramid  PyramidConfig
	Average  AveragingConfig
	Trailing TrailingConfig
	Exits    []ExitLevelConfig
	Executor ExecutorConfig
	Runtime  RuntimeConfig
}

type ExchangeConfig struct {
	BaseUrl string
	WSUrl   string
	ApiKey  string
	Secret  string
}

type TradingConfig struct {
	Symbols      []string
	IntervalSec  int
	Capital      float64
	MinNotional  float64
}

type SizingConfig struct {
	WinRate float64
	AvgWin  float64
	AvgLoss float64
	FMax    float64
}

type RiskConfig struct {
	KSl float64
	RR  float64
	// AvgPriceTolerance bounds the allowed relative divergence between the
	// leg-derived average entry and the exchange-reported one.
	AvgPriceTolerance float64
}

type PyramidConfig struct {
	MinProfitPct    float64
	MaxLegs         int
	SizeProgression []float64
	MinIntervalMin  int
}

type AveragingConfig struct {
	MaxLossPct   float64
	MaxLegs      int
	SizeFraction float64
	MaxAddedLoss float64
}

type TrailingConfig struct {
	ActivationPct float64
	ATRMultiplier float64
}

type ExitLevelConfig struct {
	ProfitPct float64 `mapstructure:"profit_pct"`
	Fraction  float64 `mapstructure:"fraction"`
}

type ExecutorConfig struct {
	Mode            string
	KillSwitch      bool
	MaxSlippageBps  float64
	OrderRetry      int
	OrderTimeoutSec int
}

type RuntimeConfig struct {
	SignalFeed  string
	StateFile   string
	JournalFile string
	MetricsAddr string
	LogLevel    string
	LogFormat   string
	LogFile     string
}

func Load() (*Config, error) {
	setDefaults()

	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	viper.ReadInConfig()

	cfg := &Config{}

	cfg.Exchange = ExchangeConfig{
		BaseUrl: viper.GetString("exchange.base_url"),
		WSUrl:   viper.GetString("exchange.ws_url"),
		ApiKey:  envSub("exchange.api_key"),
		Secret:  envSub("exchange.secret"),
	}

	cfg.Trading = TradingConfig{
		Symbols:     viper.GetStringSlice("trading.symbols"),
		IntervalSec: viper.GetInt("trading.interval_sec"),
		Capital:     viper.GetFloat64("trading.capital"),
		MinNotional: viper.GetFloat64("trading.min_notional"),
	}

	cfg.Sizing = SizingConfig{
		WinRate: viper.GetFloat64("sizing.win_rate"),
		AvgWin:  viper.GetFloat64("sizing.avg_win"),
		AvgLoss: viper.GetFloat64("sizing.avg_loss"),
		FMax:    viper.GetFloat64("sizing.f_max"),
	}

	cfg.Risk = RiskConfig{
		KSl:               viper.GetFloat64("risk.k_sl"),
		RR:                viper.GetFloat64("risk.rr"),
		AvgPriceTolerance: viper.GetFloat64("risk.avg_price_tolerance"),
	}

	cfg.Pyramid = PyramidConfig{
		MinProfitPct:    viper.GetFloat64("pyramid.min_profit_pct"),
		MaxLegs:         viper.GetInt("pyramid.max_legs"),
		SizeProgression: floatSlice("pyramid.size_progression"),
		MinIntervalMin:  viper.GetInt("pyramid.min_interval_min"),
	}

	cfg.Average = AveragingConfig{
		MaxLossPct:   viper.GetFloat64("averaging.max_loss_pct"),
		MaxLegs:      viper.GetInt("averaging.max_legs"),
		SizeFraction: viper.GetFloat64("averaging.size_fraction"),
		MaxAddedLoss: viper.GetFloat64("averaging.max_added_loss"),
	}

	cfg.Trailing = TrailingConfig{
		ActivationPct: viper.GetFloat64("trailing.activation_pct"),
		ATRMultiplier: viper.GetFloat64("trailing.atr_multiplier"),
	}

	if err := viper.UnmarshalKey("partial_exits", &cfg.Exits); err != nil {
		return nil, fmt.Errorf("parse partial_exits: %w", err)
	}

	cfg.Executor = ExecutorConfig{
		Mode:            viper.GetString("executor.mode"),
		KillSwitch:      viper.GetBool("executor.kill_switch"),
		MaxSlippageBps:  viper.GetFloat64("executor.max_slippage_bps"),
		OrderRetry:      viper.GetInt("executor.order_retry"),
		OrderTimeoutSec: viper.GetInt("executor.order_timeout_sec"),
	}

	cfg.Runtime = RuntimeConfig{
		SignalFeed:  viper.GetString("runtime.signal_feed"),
		StateFile:   viper.GetString("runtime.state_file"),
		JournalFile: viper.GetString("runtime.journal_file"),
		MetricsAddr: viper.GetString("runtime.metrics_addr"),
		LogLevel:    viper.GetString("runtime.log_level"),
		LogFormat:   viper.GetString("runtime.log_format"),
		LogFile:     viper.GetString("runtime.log_file"),
	}

	return cfg, nil
}

// Business thresholds are tunable policy, not invariants; they live here as
// defaults rather than constants in the decision code.
func setDefaults() {
	viper.SetDefault("trading.interval_sec", 60)
	viper.SetDefault("trading.min_notional", 10.0)

	viper.SetDefault("sizing.win_rate", 0.5)
	viper.SetDefault("sizing.avg_win", 1.0)
	viper.SetDefault("sizing.avg_loss", 1.0)
	viper.SetDefault("sizing.f_max", 0.2)

	viper.SetDefault("risk.k_sl", 1.5)
	viper.SetDefault("risk.rr", 2.0)
	viper.SetDefault("risk.avg_price_tolerance", 0.001)

	viper.SetDefault("pyramid.min_profit_pct", 0.03)
	viper.SetDefault("pyramid.max_legs", 3)
	viper.SetDefault("pyramid.size_progression", []float64{1.0, 0.7, 0.5})
	viper.SetDefault("pyramid.min_interval_min", 60)

	viper.SetDefault("averaging.max_loss_pct", -0.05)
	viper.SetDefault("averaging.max_legs", 2)
	viper.SetDefault("averaging.size_fraction", 0.5)
	viper.SetDefault("averaging.max_added_loss", 0.0)

	viper.SetDefault("trailing.activation_pct", 0.02)
	viper.SetDefault("trailing.atr_multiplier", 1.0)

	viper.SetDefault("partial_exits", []map[string]any{
		{"profit_pct": 0.05, "fraction": 0.3},
		{"profit_pct": 0.10, "fraction": 0.3},
		{"profit_pct": 0.15, "fraction": 0.4},
		{"profit_pct": 0.20, "fraction": 0.3},
	})

	viper.SetDefault("executor.mode", "paper")
	viper.SetDefault("executor.kill_switch", false)
	viper.SetDefault("executor.max_slippage_bps", 50.0)
	viper.SetDefault("executor.order_retry", 3)
	viper.SetDefault("executor.order_timeout_sec", 10)

	viper.SetDefault("runtime.signal_feed", "data/signals.json")
	viper.SetDefault("runtime.state_file", "data/positions.json")
	viper.SetDefault("runtime.journal_file", "data/trades.db")
	viper.SetDefault("runtime.metrics_addr", ":9090")
	viper.SetDefault("runtime.log_level", "info")
	viper.SetDefault("runtime.log_format", "text")
}

func (c *Config) PyramidInterval() time.Duration {
	return time.Duration(c.Pyramid.MinIntervalMin) * time.Minute
}

func floatSlice(key string) []float64 {
	raw := viper.Get(key)
	items, ok := raw.([]any)
	if !ok {
		if typed, ok := raw.([]float64); ok {
			return typed
		}
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			out = append(out, v)
		case int:
			out = append(out, float64(v))
		}
	}
	return out
}

func envSub(key string) string {
	val := viper.GetString(key)
	if val == "" {
		return ""
	}

	re := regexp.MustCompile(`\$\{(\w+)\}`)
	return re.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
