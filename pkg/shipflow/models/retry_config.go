package models

import "time"

// RetryConfig controls how long a failed job waits before the scheduler picks it up again.
type RetryConfig struct {
	MaxRetryCount    int
	RetryIntervalMin time.Duration
	RetryIntervalMax time.Duration
}

func DefaultJobRetryConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxRetryCount:    maxAttempts,
		RetryIntervalMin: time.Minute,
		RetryIntervalMax: 30 * time.Minute,
	}
}

// SlidingInterval returns a retry interval between min and max based on the current retry attempt.
func (rc *RetryConfig) SlidingInterval(retryNum int) time.Duration {
	if retryNum <= 0 || rc.MaxRetryCount <= 0 {
		return rc.RetryIntervalMin
	}
	if retryNum >= rc.MaxRetryCount {
		return rc.RetryIntervalMax
	}
	scale := float64(retryNum) / float64(rc.MaxRetryCount)
	return rc.RetryIntervalMin + time.Duration(scale*float64(rc.RetryIntervalMax-rc.RetryIntervalMin))
}
