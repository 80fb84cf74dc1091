package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Risk.KSl != 1.5 || cfg.Risk.RR != 2.0 {
		t.Errorf("bracket defaults = %f/%f, want 1.5/2.0", cfg.Risk.KSl, cfg.Risk.RR)
	}
	if cfg.Sizing.FMax != 0.2 {
		t.Errorf("f_max = %f, want 0.2", cfg.Sizing.FMax)
	}

	want := []float64{1.0, 0.7, 0.5}
	if len(cfg.Pyramid.SizeProgression) != len(want) {
		t.Fatalf("size progression = %v, want %v", cfg.Pyramid.SizeProgression, want)
	}
	for i, v := range want {
		if cfg.Pyramid.SizeProgression[i] != v {
			t.Errorf("size progression[%d] = %f, want %f", i, cfg.Pyramid.SizeProgression[i], v)
		}
	}

	if len(cfg.Exits) != 4 {
		t.Fatalf("exit levels = %d, want 4", len(cfg.Exits))
	}
	if cfg.Exits[0].ProfitPct != 0.05 || cfg.Exits[0].Fraction != 0.3 {
		t.Errorf("first exit level = %+v", cfg.Exits[0])
	}

	if cfg.Executor.Mode != "paper" {
		t.Errorf("mode = %q, want paper", cfg.Executor.Mode)
	}
	if cfg.Executor.MaxSlippageBps != 50 {
		t.Errorf("max slippage = %f, want 50", cfg.Executor.MaxSlippageBps)
	}
	if cfg.Executor.OrderTimeoutSec != 10 || cfg.Executor.OrderRetry != 3 {
		t.Errorf("order timeout/retry = %d/%d, want 10/3", cfg.Executor.OrderTimeoutSec, cfg.Executor.OrderRetry)
	}
}

func TestEnvSubstitution(t *testing.T) {
	viper.Reset()
	t.Setenv("TRADEBOT_TEST_KEY", "key-from-env")
	viper.Set("exchange.api_key", "${TRADEBOT_TEST_KEY}")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Exchange.ApiKey != "key-from-env" {
		t.Errorf("api key = %q, want value from environment", cfg.Exchange.ApiKey)
	}
}

func TestPyramidInterval(t *testing.T) {
	cfg := &Config{Pyramid: PyramidConfig{MinIntervalMin: 90}}
	if got := cfg.PyramidInterval().Minutes(); got != 90 {
		t.Errorf("interval = %f minutes, want 90", got)
	}
}
