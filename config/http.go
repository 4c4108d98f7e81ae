package config

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://gateway.example.com").
	// Used for generating absolute URLs in failure notifications and other external contexts.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// MaxBodyBytes caps the size of request bodies accepted by the API.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"262144"`

	// CompressionLevel is the gzip compression level (1-9); 0 disables
	// response compression. Default is 6 (standard gzip default).
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.MaxBodyBytes < 1024 {
		h.MaxBodyBytes = 1024
	}

	// Clamp compression level to 0 (disabled) through 9.
	if h.CompressionLevel < 0 {
		h.CompressionLevel = 0
	}
	if h.CompressionLevel > 9 {
		h.CompressionLevel = 9
	}
}
