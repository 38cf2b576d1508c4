package applicationlist

import "time"

type Config struct {
	Timeout time.Duration
	// MaxLimit caps the page size a caller may ask for.
	MaxLimit int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:  30 * time.Second,
		MaxLimit: 500,
	}
}
