// internal/workers/application/application-intake/config.go
package applicationintake

import "time"

type Config struct {
	Timeout time.Duration
	// PhoneFields are extracted fields checked with ValidatePhone. Bad
	// values are reported as warnings, not rejected.
	PhoneFields []string
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     15 * time.Second,
		PhoneFields: []string{"phone", "Phone", "contact_phone"},
	}
}
