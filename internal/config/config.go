package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the top-level denar.yaml configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Channels ChannelsConfig `yaml:"channels"`
	Bank     BankConfig     `yaml:"bank"`
	Lottery  LotteryConfig  `yaml:"lottery"`
	Cycles   CyclesConfig   `yaml:"cycles"`
}

// StorageConfig locates the ledger database.
type StorageConfig struct {
	Path string `yaml:"path" env:"DENAR_DB_PATH"`
}

// ChannelsConfig names the gateway channels the server posts to.
type ChannelsConfig struct {
	Moderation string `yaml:"moderation" env:"DENAR_MODERATION_CHANNEL"`
	Audit      string `yaml:"audit" env:"DENAR_AUDIT_CHANNEL"`
}

// BankConfig holds the system accounts and operator allow-list.
type BankConfig struct {
	FloatAccount   string   `yaml:"float_account"`
	FloatPassword  string   `yaml:"float_password" env:"DENAR_FLOAT_PASSWORD"`
	PoolAccount    string   `yaml:"pool_account"`
	PoolPassword   string   `yaml:"pool_password" env:"DENAR_POOL_PASSWORD"`
	Operators      []string `yaml:"operators" env:"DENAR_OPERATORS" envSeparator:","`
	OriginationFee string   `yaml:"origination_fee"`
}

// LotteryConfig sets ticket pricing and the house's share of each sale.
type LotteryConfig struct {
	TicketCost string `yaml:"ticket_cost"`
	HouseCut   string `yaml:"house_cut"`
}

// CyclesConfig sets the scheduler tick and the periodic trigger windows.
// Durations use Go syntax ("1m", "24h", "336h").
type CyclesConfig struct {
	Tick       string `yaml:"tick"`
	UsageReset string `yaml:"usage_reset"`
	Accrual    string `yaml:"accrual"`
}

// Load reads a denar.yaml file from disk, then applies environment
// variable overrides on top of it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new ledger.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Path: "denar.db",
		},
		Channels: ChannelsConfig{
			Moderation: "moderation",
			Audit:      "audit",
		},
		Bank: BankConfig{
			FloatAccount:   "IMC",
			PoolAccount:    "Lottery",
			OriginationFee: "4",
		},
		Lottery: LotteryConfig{
			TicketCost: "8",
			HouseCut:   "0.1",
		},
		Cycles: CyclesConfig{
			Tick:       "1m",
			UsageReset: "24h",
			Accrual:    "336h",
		},
	}
}

// OriginationFee parses the configured loan origination fee.
func (c *Config) OriginationFee() (decimal.Decimal, error) {
	return parseAmount("bank.origination_fee", c.Bank.OriginationFee)
}

// TicketCost parses the configured lottery ticket price.
func (c *Config) TicketCost() (decimal.Decimal, error) {
	return parseAmount("lottery.ticket_cost", c.Lottery.TicketCost)
}

// HouseCut parses the house's share of each ticket sale.
func (c *Config) HouseCut() (decimal.Decimal, error) {
	return parseAmount("lottery.house_cut", c.Lottery.HouseCut)
}

// Tick parses the scheduler tick interval.
func (c *Config) Tick() (time.Duration, error) {
	return parseDuration("cycles.tick", c.Cycles.Tick)
}

// UsageReset parses the daily usage reset window.
func (c *Config) UsageReset() (time.Duration, error) {
	return parseDuration("cycles.usage_reset", c.Cycles.UsageReset)
}

// Accrual parses the interest accrual window.
func (c *Config) Accrual() (time.Duration, error) {
	return parseDuration("cycles.accrual", c.Cycles.Accrual)
}

func parseAmount(key, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config %s: %w", key, err)
	}
	return d, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", key, err)
	}
	return d, nil
}
