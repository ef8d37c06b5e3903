package gemini

import (
	"os"
	"time"
)

// Config for the Gemini extraction client.
type Config struct {
	APIKey      string        // if empty, falls back to env GEMINI_API_KEY
	Model       string        // e.g. "gemini-1.5-pro"
	Temperature float32       // 0..2; extraction wants it low
	Timeout     time.Duration // per-call deadline
}

func (c Config) withDefaults() Config {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.Model == "" {
		c.Model = "gemini-1.5-pro"
	}
	if c.Timeout <= 0 {
		c.Timeout = 45 * time.Second
	}
	return c
}
