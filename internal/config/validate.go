package config

import (
	"fmt"

	"clipflow/internal/services"
)

// Validate ensures the configuration is usable. All failures are tagged
// services.ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateStages(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", services.ErrConfiguration, fmt.Sprintf(format, args...))
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.MaxConcurrent < 1 {
		return invalid("scheduler.max_concurrent must be at least 1")
	}
	if c.Scheduler.LaunchSpacing > 0 && c.Scheduler.LaunchSpacing < c.Scheduler.DispatchInterval {
		return invalid("scheduler.launch_spacing (%d) must not be shorter than scheduler.dispatch_interval (%d)",
			c.Scheduler.LaunchSpacing, c.Scheduler.DispatchInterval)
	}
	if c.Claims.TTLHours*2 > c.Claims.SweepIntervalHours*3 {
		// Sweeping far less often than the TTL expires is fine; the
		// inverse starves crashed workers of their reclaim window.
		if c.Claims.SweepIntervalHours < 1 {
			return invalid("claims.sweep_interval_hours must be at least 1")
		}
	}
	return nil
}

func (c *Config) validateStages() error {
	if c.Stages.PollInterval >= c.Stages.SaveTimeout {
		return invalid("stages.poll_interval (%d) must be shorter than the smallest stage ceiling (%d)",
			c.Stages.PollInterval, c.Stages.SaveTimeout)
	}
	if c.Stages.TransformRetries > 10 {
		return invalid("stages.transform_retries must be 10 or fewer")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return invalid("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
