package sendwelcomeemail

import (
	"fmt"
	"time"

	"center-onboarding/internal/common/config"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	FromEmail     string
	ReplyTo       string
	LoginURL      string
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		FromEmail:     "noreply@example.com",
	}
}

// FromAppConfig overlays the worker section and the SES integration settings on the defaults.
func FromAppConfig(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	ses := appConfig.Integrations.AWS.SES
	if ses.FromEmail != "" {
		cfg.FromEmail = ses.FromEmail
	}
	cfg.ReplyTo = ses.ReplyTo
	cfg.LoginURL = ses.LoginURL
	if timeout := appConfig.Onboarding.NotificationTimeout; timeout > 0 {
		cfg.Timeout = config.GetDuration(timeout)
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
	if c.FromEmail == "" {
		return fmt.Errorf("from_email is required")
	}
	return nil
}
