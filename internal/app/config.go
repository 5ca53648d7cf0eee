package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/provapub/internal/domain/customer"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (PROVAPUB_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (PROVAPUB_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Eligibility EligibilityConfig
	Payment     PaymentConfig
	Token       TokenConfig
	Display     DisplayConfig
	Graceful    GracefulConfig
}

// EligibilityConfig holds the purchase rule thresholds.
type EligibilityConfig struct {
	Cooldown         time.Duration `default:"720h" usage:"Minimum time between two orders of a customer"`
	FirstPurchaseCap string        `default:"100"  usage:"Largest value accepted for a first purchase" flag:"first-purchase-cap"`
	OpenHour         int           `default:"8"    usage:"First UTC hour of the operating window"`
	CloseHour        int           `default:"18"   usage:"Last UTC hour of the operating window"`
}

// PaymentConfig controls payment simulation and order persistence.
type PaymentConfig struct {
	Latency         time.Duration `default:"100ms" usage:"Simulated provider latency"`
	PersistAttempts int           `default:"3"     usage:"Order insert attempts after a successful payment" flag:"persist-attempts"`
	RetryDelay      time.Duration `default:"50ms"  usage:"Delay between order insert attempts" flag:"retry-delay"`
}

// TokenConfig controls random token allocation.
type TokenConfig struct {
	Size int `default:"100" usage:"Number of distinct tokens"`
}

// DisplayConfig controls response rendering.
type DisplayConfig struct {
	TimeZone string `default:"America/Sao_Paulo" usage:"IANA time zone for order dates in responses" flag:"time-zone"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and platform defaults, then validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PROVAPUB",
		Files:     []string{"config.yaml", "/etc/provapub/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps DATABASE_URL and PORT, as set by hosting
// platforms, onto the prefixed settings.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set PROVAPUB_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.Eligibility.Policy(); err != nil {
		return err
	}
	if c.Payment.PersistAttempts < 1 {
		return errors.Errorf("persist attempts must be at least 1, got %d", c.Payment.PersistAttempts)
	}
	if c.Token.Size < 1 {
		return errors.Errorf("token size must be positive, got %d", c.Token.Size)
	}
	if _, err := c.Display.Location(); err != nil {
		return err
	}
	return nil
}

// Policy converts the settings into an eligibility policy.
func (c EligibilityConfig) Policy() (customer.Policy, error) {
	capValue, err := decimal.NewFromString(c.FirstPurchaseCap)
	if err != nil {
		return customer.Policy{}, errors.Wrapf(err, "parse first purchase cap %q", c.FirstPurchaseCap)
	}
	if c.Cooldown < 0 {
		return customer.Policy{}, errors.Errorf("cooldown must not be negative, got %s", c.Cooldown)
	}
	if c.OpenHour < 0 || c.CloseHour > 23 || c.OpenHour > c.CloseHour {
		return customer.Policy{}, errors.Errorf("invalid operating window %d..%d", c.OpenHour, c.CloseHour)
	}
	return customer.Policy{
		Cooldown:         c.Cooldown,
		FirstPurchaseCap: capValue,
		OpenHour:         c.OpenHour,
		CloseHour:        c.CloseHour,
	}, nil
}

// Location loads the display time zone.
func (c DisplayConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "load time zone %q", c.TimeZone)
	}
	return loc, nil
}
