package auditlogquery

import "time"

type Config struct {
	Timeout  time.Duration
	MaxLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  15 * time.Second,
		MaxLimit: 500,
	}
}
