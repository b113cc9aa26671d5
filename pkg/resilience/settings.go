package resilience

import "time"

// BuildSettings fills unset breaker knobs with defaults: a one minute
// counting interval, 30s open timeout, five consecutive failures to trip
// and one probe to close.
func BuildSettings(name string, interval, timeout time.Duration, failureThreshold, successThreshold int) Settings {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if successThreshold <= 0 {
		successThreshold = 1
	}

	return Settings{
		Name:             name,
		Interval:         interval,
		Timeout:          timeout,
		FailureThreshold: uint32(failureThreshold),
		SuccessThreshold: uint32(successThreshold),
	}
}
