package config

import (
	"strconv"
	"strings"
)

// applyEnvOverrides applies CRONHUB_-prefixed environment variable overrides.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	envMap := map[string]*string{
		"CRONHUB_STORE_DRIVER":       &cfg.Store.Driver,
		"CRONHUB_STORE_PATH":         &cfg.Store.Path,
		"CRONHUB_SCHEDULER_TICK":     &cfg.Scheduler.Tick,
		"CRONHUB_SCHEDULER_TIMEZONE": &cfg.Scheduler.Timezone,
		"CRONHUB_LOG_LEVEL":          &cfg.Logging.Level,
		"CRONHUB_ADMIN_ADDR":         &cfg.Admin.Addr,
		"CRONHUB_ADMIN_TOKEN":        &cfg.Admin.Token,
	}
	for env, ptr := range envMap {
		if val := strings.TrimSpace(getenv(env)); val != "" {
			*ptr = val
		}
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(getenv("CRONHUB_ADMIN_ENABLED"))); err == nil {
		cfg.Admin.Enabled = v
	}
}
