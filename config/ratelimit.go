package config

import "time"

// RateLimitConfig controls the per-owner request limit on job submission.
type RateLimitConfig struct {
	// Enabled turns rate limiting on for enqueue and retry endpoints.
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	// Limit is the number of requests allowed per window per owner.
	Limit int `env:"RATE_LIMIT_REQUESTS" envDefault:"20"`

	// Window is the sliding window size.
	Window time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`

	// KeyPrefix namespaces limiter keys in Redis.
	KeyPrefix string `env:"RATE_LIMIT_KEY_PREFIX" envDefault:"ai:ratelimit:"`
}

// Sanitize applies guardrails to rate limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.Limit < 1 {
		r.Limit = 1
	}
	if r.Window < time.Second {
		r.Window = time.Second
	}
	if r.KeyPrefix == "" {
		r.KeyPrefix = "ai:ratelimit:"
	}
}
