package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
	"github.com/vadiminshakov/pumpsniper/internal/services/gate"
	"gopkg.in/yaml.v3"
)

const (
	ModeLive  = "live"
	ModePaper = "paper"

	EnvPrivateKey = "SOLANA_PRIVATE_KEY"
	EnvRPCURL     = "SOLANA_RPC_URL"
	EnvFeedURL    = "PUMPPORTAL_WS_URL"
	EnvTradeURL   = "PUMPPORTAL_TRADE_URL"

	DefaultPreset = "mover"
)

// Config is the parsed and validated bot configuration.
type Config struct {
	Mode     string
	Gate     gate.Mode
	LogLevel string

	BuyAmount decimal.Decimal
	Window    time.Duration
	Filters   domain.ScoreFilters
	Exit      domain.ExitPolicy
	// MonitorTick is how often the max hold timeout is re-checked without trades.
	MonitorTick time.Duration

	Execution    domain.ExecutionParams
	PollInterval time.Duration
	PollAttempts int

	PaperBalance decimal.Decimal
	PaperFee     decimal.Decimal

	ShutdownSellTimeout time.Duration
	SeenTTL             time.Duration
	HeartbeatInterval   time.Duration
	FeedBuffer          int
	WebAddr             string
	JournalDir          string

	PrivateKey string
	RPCURL     string
	FeedURL    string
	TradeURL   string
}

// ConfigTmp is the yaml representation of Config.
type ConfigTmp struct {
	Mode     string `yaml:"mode"`
	Gate     string `yaml:"gate"`
	LogLevel string `yaml:"log_level,omitempty"`

	BuyAmount    string        `yaml:"buy_amount"`
	Window       time.Duration `yaml:"window"`
	MinTrades    int           `yaml:"min_trades"`
	MinVolume    string        `yaml:"min_volume"`
	MinRatio     string        `yaml:"min_ratio"`
	SellFloor    string        `yaml:"sell_floor,omitempty"`
	TakeProfit   string        `yaml:"take_profit"`
	StopLoss     string        `yaml:"stop_loss"`
	GracePeriod  time.Duration `yaml:"grace_period"`
	MaxHold      time.Duration `yaml:"max_hold"`
	MonitorTick  time.Duration `yaml:"monitor_tick,omitempty"`
	Slippage     string        `yaml:"slippage"`
	PriorityFee  string        `yaml:"priority_fee"`
	Pool         string        `yaml:"pool,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	PollAttempts int           `yaml:"poll_attempts,omitempty"`

	PaperBalance string `yaml:"paper_balance,omitempty"`
	PaperFee     string `yaml:"paper_fee,omitempty"`

	ShutdownSellTimeout time.Duration `yaml:"shutdown_sell_timeout,omitempty"`
	SeenTTL             time.Duration `yaml:"seen_ttl,omitempty"`
	HeartbeatInterval   time.Duration `yaml:"heartbeat_interval,omitempty"`
	FeedBuffer          int           `yaml:"feed_buffer,omitempty"`
	WebAddr             string        `yaml:"web_addr,omitempty"`
	JournalDir          string        `yaml:"journal_dir,omitempty"`
}

// Flags are the command line options.
type Flags struct {
	Path   string
	Preset string
	Setup  bool
}

// ParseFlags parses command line arguments.
func ParseFlags(args []string) (Flags, error) {
	var f Flags
	fs := flag.NewFlagSet("pumpsniper", flag.ContinueOnError)
	fs.StringVar(&f.Path, "config", "", "path to yaml config")
	fs.StringVar(&f.Preset, "preset", DefaultPreset, "strategy preset: mover, hunter, breakeven, production")
	fs.BoolVar(&f.Setup, "setup", false, "run the interactive configuration wizard")
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	return f, nil
}

// Get loads the preset, applies the yaml file on top of it and reads credentials from the environment.
func Get(f Flags) (Config, error) {
	if f.Preset == "" {
		f.Preset = DefaultPreset
	}
	tmp, err := Preset(f.Preset)
	if err != nil {
		return Config{}, err
	}

	if f.Path != "" {
		data, err := os.ReadFile(f.Path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "parse config file %s", f.Path)
		}
	}

	cfg, err := tmp.Parse()
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Preset returns the yaml-level defaults of a named strategy.
func Preset(name string) (ConfigTmp, error) {
	tmp := ConfigTmp{
		Mode:                ModePaper,
		Gate:                string(gate.ModeSingle),
		LogLevel:            "info",
		BuyAmount:           "0.01",
		Window:              15 * time.Second,
		MinTrades:           10,
		MinVolume:           "0.5",
		MinRatio:            "1.4",
		TakeProfit:          "1.5",
		StopLoss:            "0.85",
		MaxHold:             300 * time.Second,
		MonitorTick:         time.Second,
		Slippage:            "10",
		PriorityFee:         "0.001",
		Pool:                "pump",
		PollInterval:        time.Second,
		PollAttempts:        20,
		PaperBalance:        "1",
		PaperFee:            "0",
		ShutdownSellTimeout: 20 * time.Second,
		SeenTTL:             time.Hour,
		HeartbeatInterval:   time.Minute,
		FeedBuffer:          256,
		JournalDir:          "./wal/lifecycle",
	}

	switch name {
	case "mover":
	case "hunter":
		tmp.BuyAmount = "0.0001"
		tmp.MinTrades = 1
		tmp.MinVolume = "0.002"
		tmp.MinRatio = "1.1"
		tmp.TakeProfit = "1.2"
		tmp.StopLoss = "0.1"
		tmp.GracePeriod = 3 * time.Second
		tmp.MaxHold = 30 * time.Second
		tmp.Slippage = "50"
	case "breakeven":
		tmp.BuyAmount = "0.0001"
		tmp.MinTrades = 1
		tmp.MinVolume = "0.002"
		tmp.MinRatio = "1.1"
		tmp.TakeProfit = "1.0"
		tmp.StopLoss = "0.1"
		tmp.GracePeriod = 3 * time.Second
		tmp.MaxHold = 30 * time.Second
		tmp.Slippage = "25"
		tmp.PriorityFee = "0.005"
	case "production":
		tmp.Gate = string(gate.ModeIndependent)
		tmp.BuyAmount = "0.001"
		// buy on the creation event, no trade required
		tmp.MinTrades = 0
		tmp.MinVolume = "0"
		tmp.MinRatio = "0"
		tmp.TakeProfit = "0"
		tmp.StopLoss = "0"
		tmp.Slippage = "30"
		tmp.PriorityFee = "0.001"
	default:
		return ConfigTmp{}, errors.Errorf("unknown preset %q", name)
	}

	return tmp, nil
}

// Parse converts string fields to typed values.
func (c ConfigTmp) Parse() (Config, error) {
	buyAmount, err := parseDecimal("buy_amount", c.BuyAmount)
	if err != nil {
		return Config{}, err
	}
	minVolume, err := parseDecimal("min_volume", c.MinVolume)
	if err != nil {
		return Config{}, err
	}
	minRatio, err := parseDecimal("min_ratio", c.MinRatio)
	if err != nil {
		return Config{}, err
	}
	sellFloor := domain.DefaultSellFloor
	if c.SellFloor != "" {
		if sellFloor, err = parseDecimal("sell_floor", c.SellFloor); err != nil {
			return Config{}, err
		}
	}
	takeProfit, err := parseDecimal("take_profit", c.TakeProfit)
	if err != nil {
		return Config{}, err
	}
	stopLoss, err := parseDecimal("stop_loss", c.StopLoss)
	if err != nil {
		return Config{}, err
	}
	slippage, err := parseDecimal("slippage", c.Slippage)
	if err != nil {
		return Config{}, err
	}
	priorityFee, err := parseDecimal("priority_fee", c.PriorityFee)
	if err != nil {
		return Config{}, err
	}
	paperBalance, err := parseDecimal("paper_balance", valueOr(c.PaperBalance, "1"))
	if err != nil {
		return Config{}, err
	}
	paperFee, err := parseDecimal("paper_fee", valueOr(c.PaperFee, "0"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		Mode:      c.Mode,
		Gate:      gate.Mode(c.Gate),
		LogLevel:  valueOr(c.LogLevel, "info"),
		BuyAmount: buyAmount,
		Window:    c.Window,
		Filters: domain.ScoreFilters{
			MinTrades: c.MinTrades,
			MinVolume: minVolume,
			MinRatio:  minRatio,
			SellFloor: sellFloor,
		},
		Exit: domain.ExitPolicy{
			TakeProfit: takeProfit,
			StopLoss:   stopLoss,
			Grace:      c.GracePeriod,
			MaxHold:    c.MaxHold,
		},
		MonitorTick: c.MonitorTick,
		Execution: domain.ExecutionParams{
			Slippage:    slippage,
			PriorityFee: priorityFee,
			Pool:        valueOr(c.Pool, "pump"),
		},
		PollInterval:        c.PollInterval,
		PollAttempts:        c.PollAttempts,
		PaperBalance:        paperBalance,
		PaperFee:            paperFee,
		ShutdownSellTimeout: c.ShutdownSellTimeout,
		SeenTTL:             c.SeenTTL,
		HeartbeatInterval:   c.HeartbeatInterval,
		FeedBuffer:          c.FeedBuffer,
		WebAddr:             c.WebAddr,
		JournalDir:          c.JournalDir,
	}, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.PrivateKey = getenv(EnvPrivateKey)
	c.RPCURL = getenv(EnvRPCURL)
	c.FeedURL = getenv(EnvFeedURL)
	c.TradeURL = getenv(EnvTradeURL)
}

// Validate checks value ranges and mode specific requirements.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeLive:
		if c.PrivateKey == "" {
			return errors.Errorf("%s must be set in live mode", EnvPrivateKey)
		}
	case ModePaper:
	default:
		return errors.Errorf("unknown mode %q, expected %s or %s", c.Mode, ModeLive, ModePaper)
	}
	if c.Gate != gate.ModeSingle && c.Gate != gate.ModeIndependent {
		return errors.Errorf("unknown gate %q, expected %s or %s", c.Gate, gate.ModeSingle, gate.ModeIndependent)
	}
	if !c.BuyAmount.IsPositive() {
		return errors.New("buy_amount must be greater than zero")
	}
	if c.Window <= 0 {
		return errors.New("window must be positive")
	}
	if c.Exit.MaxHold <= 0 {
		return errors.New("max_hold must be positive")
	}
	if c.Exit.Grace < 0 {
		return errors.New("grace_period must not be negative")
	}
	if c.Filters.MinTrades < 0 {
		return errors.New("min_trades must not be negative")
	}
	for name, v := range map[string]decimal.Decimal{
		"min_volume":    c.Filters.MinVolume,
		"min_ratio":     c.Filters.MinRatio,
		"take_profit":   c.Exit.TakeProfit,
		"stop_loss":     c.Exit.StopLoss,
		"slippage":      c.Execution.Slippage,
		"priority_fee":  c.Execution.PriorityFee,
		"paper_balance": c.PaperBalance,
		"paper_fee":     c.PaperFee,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if !c.Filters.SellFloor.IsPositive() {
		return errors.New("sell_floor must be greater than zero")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.PollAttempts <= 0 {
		return errors.New("poll_attempts must be greater than zero")
	}
	if c.ShutdownSellTimeout < 0 {
		return errors.New("shutdown_sell_timeout must not be negative")
	}

	return nil
}

func parseDecimal(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("incorrect '%s' param in yaml config (must be a decimal), error: %w", name, err)
	}

	return d, nil
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}

	return v
}
