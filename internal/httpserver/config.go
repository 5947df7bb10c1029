package httpserver

import "time"

const (
	defaultShutdownTimeout = 5 * time.Second
	defaultSlotCacheTTL    = 30 * time.Second
)

// Config carries the HTTP façade settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	AuthSigningKey string
	SlotCacheTTL   time.Duration
}

func (cfg Config) slotCacheTTL() time.Duration {
	if cfg.SlotCacheTTL <= 0 {
		return defaultSlotCacheTTL
	}
	return cfg.SlotCacheTTL
}
