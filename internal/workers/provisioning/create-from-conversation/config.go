package createfromconversation

import (
	"fmt"
	"time"

	"center-onboarding/internal/common/config"
)

type Config struct {
	Enabled               bool
	MaxJobsActive         int
	Timeout               time.Duration
	CityResolutionTimeout time.Duration
	ProvisioningTimeout   time.Duration
	NotificationTimeout   time.Duration
	DefaultCurrency       string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:               true,
		MaxJobsActive:         5,
		Timeout:               60 * time.Second,
		CityResolutionTimeout: 10 * time.Second,
		ProvisioningTimeout:   30 * time.Second,
		NotificationTimeout:   10 * time.Second,
		DefaultCurrency:       "EUR",
	}
}

func FromAppConfig(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	onboarding := appConfig.Onboarding
	if onboarding.CityResolutionTimeout > 0 {
		cfg.CityResolutionTimeout = config.GetDuration(onboarding.CityResolutionTimeout)
	}
	if onboarding.ProvisioningTimeout > 0 {
		cfg.ProvisioningTimeout = config.GetDuration(onboarding.ProvisioningTimeout)
	}
	if onboarding.NotificationTimeout > 0 {
		cfg.NotificationTimeout = config.GetDuration(onboarding.NotificationTimeout)
	}
	if onboarding.DefaultCurrency != "" {
		cfg.DefaultCurrency = onboarding.DefaultCurrency
	}
	if workerCfg, exists := appConfig.Workers[TaskType]; exists {
		cfg.Enabled = workerCfg.Enabled
		if workerCfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = workerCfg.MaxJobsActive
		}
		if workerCfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(workerCfg.Timeout)
		}
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.CityResolutionTimeout <= 0 || c.ProvisioningTimeout <= 0 || c.NotificationTimeout <= 0 {
		return fmt.Errorf("step timeouts must be positive")
	}
	if len(c.DefaultCurrency) != 3 {
		return fmt.Errorf("default_currency must be a 3-letter code, got %q", c.DefaultCurrency)
	}
	return nil
}
