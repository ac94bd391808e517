package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig carries the tunables of the obligation engine. It is read
// from billing.yml and hot reloaded.
type BillingConfig struct {
	// HorizonMonths is how far past the as-of date obligations are generated.
	HorizonMonths int `mapstructure:"horizonMonths"`
	// UpcomingWindowDays bounds the "due soon" report.
	UpcomingWindowDays   int `mapstructure:"upcomingWindowDays"`
	TopClientsLimit      int `mapstructure:"topClientsLimit"`
	TrendMonths          int `mapstructure:"trendMonths"`
	GeneratorConcurrency int `mapstructure:"generatorConcurrency"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		HorizonMonths:        3,
		UpcomingWindowDays:   7,
		TopClientsLimit:      5,
		TrendMonths:          6,
		GeneratorConcurrency: 4,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

// NewStaticBillingConfigHolder returns a holder that never reloads.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/clientdesk/config") // Volume-mounted config
	v.AddConfigPath("/etc/clientdesk")            // System config
	v.AddConfigPath(".")                          // Current directory (dev mode)

	v.SetEnvPrefix("CLIENTDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.horizonMonths", defaults.HorizonMonths)
	v.SetDefault("billing.upcomingWindowDays", defaults.UpcomingWindowDays)
	v.SetDefault("billing.topClientsLimit", defaults.TopClientsLimit)
	v.SetDefault("billing.trendMonths", defaults.TrendMonths)
	v.SetDefault("billing.generatorConcurrency", defaults.GeneratorConcurrency)

	configFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		configFound = false
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBillingConfigHolder(cfg)
	if !configFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// Get returns the active config. A nil or empty holder yields the defaults.
func (h *BillingConfigHolder) Get() BillingConfig {
	if h == nil {
		return DefaultBillingConfig()
	}
	cfg, ok := h.current.Load().(BillingConfig)
	if !ok {
		return DefaultBillingConfig()
	}
	return cfg
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.HorizonMonths < 1 {
		return errors.New("billing.horizonMonths must be at least 1")
	}
	if cfg.UpcomingWindowDays < 0 {
		return errors.New("billing.upcomingWindowDays cannot be negative")
	}
	if cfg.TopClientsLimit < 1 {
		return errors.New("billing.topClientsLimit must be at least 1")
	}
	if cfg.TrendMonths < 1 {
		return errors.New("billing.trendMonths must be at least 1")
	}
	if cfg.GeneratorConcurrency < 1 {
		return errors.New("billing.generatorConcurrency must be at least 1")
	}
	return nil
}
