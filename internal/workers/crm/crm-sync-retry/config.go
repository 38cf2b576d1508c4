// internal/workers/crm/crm-sync-retry/config.go
package crmsyncretry

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
