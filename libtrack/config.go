package libtrack

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// EnvPrefix namespaces every configuration variable.
const EnvPrefix = "LIBTRACK"

// Config controls storage location, circulation policy, and logging.
type Config struct {
	DBPath         string `envconfig:"DB_PATH" default:"library.db"`
	LoanPeriodDays int    `envconfig:"LOAN_PERIOD_DAYS" default:"14"`
	FinePerDay     string `envconfig:"FINE_PER_DAY" default:"1.00"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"console"`
}

// LoadConfig reads configuration from LIBTRACK_* environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if _, err := cfg.FineRate(); err != nil {
		return Config{}, err
	}
	if cfg.LoanPeriodDays <= 0 {
		return Config{}, fmt.Errorf("loan period must be positive, got %d", cfg.LoanPeriodDays)
	}
	return cfg, nil
}

// FineRate parses the configured daily fine into a decimal amount.
func (c Config) FineRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.FinePerDay)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing fine rate %q: %w", c.FinePerDay, err)
	}
	if rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("fine rate cannot be negative: %s", c.FinePerDay)
	}
	return rate, nil
}
