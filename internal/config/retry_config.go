package config

import "time"

type RetryConfig interface {
	GetMaxRetries() int
	GetRetryBaseDelay() time.Duration
	GetRequestTimeout() time.Duration
}

type Retry struct{}

var _ RetryConfig = Retry{}

func (Retry) GetMaxRetries() int {
	return GetInt("MAX_RETRIES", 3)
}

// GetRetryBaseDelay is multiplied by 2^n before retry n (1s -> 2s, 4s, 8s).
func (Retry) GetRetryBaseDelay() time.Duration {
	return GetDuration("RETRY_BASE_DELAY", time.Second)
}

func (Retry) GetRequestTimeout() time.Duration {
	return GetDuration("REQUEST_TIMEOUT", 30*time.Second)
}
